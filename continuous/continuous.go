// Package continuous implements the continuous synth backend. A single
// sustained note is held for the whole series while its pitch is bent
// frame by frame following the normalized series values.
package continuous

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/synth"
)

const (
	// Note is the MIDI note held during rendering, middle C.
	Note = 60
	// Velocity of the held note.
	Velocity = 127
	// BendRange is max pitch bend in semitones both ways.
	BendRange = 7
)

// Bend maps normalized value u in [0, 1] to pitch bend in
// [-BendRange, BendRange]: 0 is -7, 0.5 is 0 and 1 is +7.
func Bend(u float64) float64 {
	return u*2*BendRange - BendRange
}

// Bends returns pitch bend for every sample of the series. Zero-width
// series maps to the lowest bend.
func Bends(s sonify.Series) []float64 {
	r := s.Range()
	bends := make([]float64, len(s))
	for i, v := range s {
		bends[i] = Bend(r.Normalize(v))
	}
	return bends
}

// BlocksPerFrame returns number of whole synth blocks rendered for each
// frame.
func BlocksPerFrame(sampleRate, fps, blockSize int) int {
	if fps <= 0 || blockSize <= 0 {
		return 0
	}
	return sampleRate / fps / blockSize
}

// Local renders series with the in-process synth loaded from a patch
// file.
type Local struct {
	PatchPath  string
	SampleRate int

	log logrus.FieldLogger
}

// NewLocal returns local backend for provided patch file.
func NewLocal(patchPath string) *Local {
	return &Local{
		PatchPath:  patchPath,
		SampleRate: signal.SampleRate,
		log:        log.GetLogger().WithField("backend", "continuous-local"),
	}
}

// WithLogger sets backend logger.
func (l *Local) WithLogger(lg logrus.FieldLogger) *Local {
	l.log = lg.WithField("backend", "continuous-local")
	return l
}

// Load loads the patch and creates a synth. Any failure is
// BackendUnavailable, including patches which can't bend the full range.
func (l *Local) Load() (*synth.Synth, error) {
	if l.PatchPath == "" {
		return nil, sonify.Errorf(sonify.KindBackendUnavailable, "load patch", "patch path is not set")
	}
	p, err := synth.LoadPatch(l.PatchPath)
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindBackendUnavailable, Op: "load patch", Err: err}
	}
	if p.PitchBendRange < BendRange {
		return nil, sonify.Errorf(sonify.KindBackendUnavailable, "load patch", "pitch bend range %v of %s is below %d semitones", p.PitchBendRange, l.PatchPath, BendRange)
	}
	s, err := synth.New(*p, l.SampleRate)
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindBackendUnavailable, Op: "load patch", Err: err}
	}
	return s, nil
}

// Available checks if the patch can be loaded.
func (l *Local) Available() error {
	_, err := l.Load()
	return err
}

// Render implements sonify.Backend.
func (l *Local) Render(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
	if err := req.Series.Validate(); err != nil {
		return nil, err
	}
	if req.FPS <= 0 {
		return nil, sonify.Errorf(sonify.KindInvalidSeries, "continuous", "fps must be positive, got %d", req.FPS)
	}
	s, err := l.Load()
	if err != nil {
		return nil, err
	}
	w, err := Render(ctx, s, req.Series, req.FPS)
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"patch":   s.Patch().Name,
		"samples": w.Len(),
	}).Debug("rendered continuous audio")
	return w, nil
}

// Render drives the synth with the series. Every frame sets the pitch
// bend and renders BlocksPerFrame whole blocks, so pitch is piecewise
// constant per frame. Waveform is sized to the series duration, the tail
// not covered by whole blocks is silent. Result is peak-normalized and
// quantized to 16 bit.
func Render(ctx context.Context, s *synth.Synth, series sonify.Series, fps int) (*signal.Waveform, error) {
	sampleRate := s.SampleRate()
	blocks := BlocksPerFrame(sampleRate, fps, s.BlockSize())
	if blocks == 0 {
		return nil, sonify.Errorf(sonify.KindBackendUnavailable, "continuous", "%d fps is too high for block size %d", fps, s.BlockSize())
	}
	w := signal.New(sampleRate, signal.SamplesFor(sampleRate, series.Duration(fps)))

	s.PlayNote(Note, Velocity)
	pos := 0
	for _, bend := range Bends(series) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.SetPitchBend(bend)
		for b := 0; b < blocks; b++ {
			pos += copy(w.Samples[pos:], s.Process())
		}
	}
	s.ReleaseNote(Note)

	w.Normalize()
	return signal.FromInt(w.AsInt(signal.BitDepth16), signal.BitDepth16, sampleRate), nil
}
