// Package synth is a small monophonic software synthesizer. It renders
// audio block by block and is driven by note and pitch bend events, so a
// caller can change pitch between blocks.
package synth

import (
	"fmt"
	"math"
)

// Synth renders a single voice.
type Synth struct {
	patch      Patch
	sampleRate int

	note     int
	velocity float64
	gate     bool
	bend     float64
	phase    float64
	level    float64
	buf      []float64
}

// New creates synth for provided patch and sample rate.
func New(p Patch, sampleRate int) (*Synth, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return &Synth{
		patch:      p,
		sampleRate: sampleRate,
		buf:        make([]float64, p.BlockSize),
	}, nil
}

// BlockSize returns number of samples rendered by Process.
func (s *Synth) BlockSize() int {
	return s.patch.BlockSize
}

// SampleRate returns sample rate the synth renders at.
func (s *Synth) SampleRate() int {
	return s.sampleRate
}

// Patch returns loaded patch.
func (s *Synth) Patch() Patch {
	return s.patch
}

// PlayNote presses a MIDI note with velocity in [0, 127]. Previous note is
// replaced.
func (s *Synth) PlayNote(note, velocity int) {
	s.note = note
	s.velocity = math.Max(0, math.Min(127, float64(velocity))) / 127
	s.gate = true
}

// ReleaseNote releases the note if it's currently pressed.
func (s *Synth) ReleaseNote(note int) {
	if s.note == note {
		s.gate = false
	}
}

// SetPitchBend sets pitch offset in semitones, clamped to the patch range.
func (s *Synth) SetPitchBend(semitones float64) {
	r := s.patch.PitchBendRange
	s.bend = math.Max(-r, math.Min(r, semitones))
}

// PitchBend returns current pitch offset in semitones.
func (s *Synth) PitchBend() float64 {
	return s.bend
}

// Frequency returns current oscillator frequency in Hz.
func (s *Synth) Frequency() float64 {
	return 440 * math.Pow(2, (float64(s.note-69)+s.bend)/12)
}

// Process renders the next block. Returned slice is reused by subsequent
// calls.
func (s *Synth) Process() []float64 {
	sr := float64(s.sampleRate)
	inc := s.Frequency() / sr
	attack := envelopeStep(s.patch.Attack, sr)
	release := envelopeStep(s.patch.Release, sr)
	for i := range s.buf {
		if s.gate {
			s.level = math.Min(1, s.level+attack)
		} else {
			s.level = math.Max(0, s.level-release)
		}
		s.buf[i] = s.patch.Gain * s.velocity * s.level * oscillate(s.patch.Oscillator, s.phase)
		s.phase += inc
		s.phase -= math.Floor(s.phase)
	}
	return s.buf
}

// envelopeStep returns per-sample level change for the envelope time.
func envelopeStep(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1 / (seconds * sampleRate)
}

// oscillate returns oscillator value for phase in [0, 1).
func oscillate(o Oscillator, phase float64) float64 {
	switch o {
	case Saw:
		return 2*phase - 1
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
