// Package tone implements the tone-sequencer backend. Every sample of a
// series becomes a short sine note which slides to the adjacent pitch level
// in the direction the series moves next.
package tone

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/quantize"
	"github.com/dudk/sonify/signal"
)

// Default synthesis parameters.
const (
	DefaultAmplitude = 0.5
	DefaultAttack    = 0.01
	DefaultDecay     = 0.1
)

// Hold is the end level of an event which doesn't slide.
const Hold = -1

// Event is a note played for a single sample of the series.
type Event struct {
	Start    int     // pitch level the note starts at
	End      int     // pitch level the note slides to, Hold if none
	Duration float64 // seconds
}

// Slide is true if the note glides to another level.
func (e Event) Slide() bool {
	return e.End != Hold
}

// Events maps the series to note events. Every event lasts 1/fps seconds,
// so all events together last len(s)/fps seconds.
//
// The level of a sample is the first bucket its value is below. A sample
// followed by a greater one slides one level up, unless it's already at
// the top level. Any other sample slides one level down, clamped at the
// lowest level. The last sample holds its level.
func Events(s sonify.Series, fps int) ([]Event, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if fps <= 0 {
		return nil, sonify.Errorf(sonify.KindInvalidSeries, "tone", "fps must be positive, got %d", fps)
	}
	m := quantize.New(s.Range())
	duration := s.Duration(fps) / float64(len(s))
	events := make([]Event, len(s))
	for i, v := range s {
		j := m.Level(v)
		e := Event{Start: j, End: Hold, Duration: duration}
		switch {
		case i == len(s)-1:
		case s[i+1] > v && j < quantize.Levels-1:
			e.End = j + 1
		default:
			e.End = j - 1
			if e.End < 0 {
				e.End = 0
			}
		}
		events[i] = e
	}
	return events, nil
}

// Sequencer renders note events as a single sine track.
type Sequencer struct {
	SampleRate int
	Amplitude  float64
	Attack     float64 // seconds
	Decay      float64 // seconds

	log logrus.FieldLogger
}

// New returns sequencer with default parameters.
func New() *Sequencer {
	return &Sequencer{
		SampleRate: signal.SampleRate,
		Amplitude:  DefaultAmplitude,
		Attack:     DefaultAttack,
		Decay:      DefaultDecay,
		log:        log.GetLogger().WithField("backend", "tone-sequencer"),
	}
}

// WithLogger sets sequencer logger.
func (s *Sequencer) WithLogger(l logrus.FieldLogger) *Sequencer {
	s.log = l.WithField("backend", "tone-sequencer")
	return s
}

// Render implements sonify.Backend.
func (s *Sequencer) Render(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
	events, err := Events(req.Series, req.FPS)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := s.Synthesize(events)
	s.log.WithFields(logrus.Fields{
		"events":  len(events),
		"samples": w.Len(),
	}).Debug("rendered tones")
	return w, nil
}

// Synthesize renders events into a waveform. The length of the waveform is
// the total duration of events rounded to whole samples. Sample boundaries
// of events are rounded cumulatively, so rounding errors don't add up.
func (s *Sequencer) Synthesize(events []Event) *signal.Waveform {
	var total float64
	for _, e := range events {
		total += e.Duration
	}
	w := signal.New(s.SampleRate, signal.SamplesFor(s.SampleRate, total))

	var (
		phase   float64
		elapsed float64
		pos     int
	)
	for _, e := range events {
		elapsed += e.Duration
		end := signal.SamplesFor(s.SampleRate, elapsed)
		if end > w.Len() {
			end = w.Len()
		}
		phase = s.note(w.Samples[pos:end], e, phase)
		pos = end
	}
	return w
}

// note renders a single event into buf and returns the phase at its end.
// The end pitch of a slide keeps the octave of the start level.
func (s *Sequencer) note(buf []float64, e Event, phase float64) float64 {
	n := len(buf)
	if n == 0 {
		return phase
	}
	start := quantize.Level(e.Start)
	f0 := start.Frequency()
	f1 := f0
	if e.Slide() {
		f1 = quantize.Frequency(quantize.Level(e.End).Semitone, start.Octave)
	}
	attack := math.Min(s.Attack*float64(s.SampleRate), float64(n))
	decay := math.Min(s.Decay*float64(s.SampleRate), float64(n))
	step := 2 * math.Pi / float64(s.SampleRate)
	for k := range buf {
		f := f0 + (f1-f0)*float64(k)/float64(n)
		env := 1.0
		if attack > 0 && float64(k) < attack {
			env = float64(k) / attack
		}
		if rest := float64(n - k); decay > 0 && rest < decay {
			env = math.Min(env, rest/decay)
		}
		buf[k] = s.Amplitude * env * math.Sin(phase)
		phase = math.Mod(phase+step*f, 2*math.Pi)
	}
	return phase
}
