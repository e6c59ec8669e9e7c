/*
Package sonify turns numeric series into sound and builds videos where an
animated line plot plays along with the generated soundtrack.

Concept

A series is an ordered sequence of values: samples of a math function,
closing prices of a stock or row brightness of an image. The pitch of the
soundtrack follows the values of the series. Every value is played for
exactly one video frame, so the audio and animation have the same length:

    duration = len(series) / fps

Backends

The waveform is rendered by one of interchangeable backends:

    tone.Sequencer - quantizes values into discrete pitch levels and plays
    short sliding notes;
    continuous.Local - holds a single note of the in-process synthesizer
    and bends its pitch frame by frame;
    remote.Client - ships the series to a remote synthesizer service.

Backends are chosen with backend.Selector. Continuous backends always fall
back to the tone sequencer when they cannot render, so audio never fails
only because a synthesizer is unavailable.

Pipeline

The pipeline package sequences the stages of a sonification:

    PARSE -> ANIMATE -> AUDIO -> COMBINE -> DONE

Every stage produces a named artifact in a working directory managed by the
artifact package. Stages can also be invoked one by one and artifacts are
removed with an explicit cleanup call.
*/
package sonify
