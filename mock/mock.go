// Package mock provides mocks for pipeline components and allows to
// execute pipeline tests without ffmpeg.
package mock

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/backend"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/tone"
)

// Source mocks a pipeline.Source interface.
type Source struct {
	counter
	Name            string
	Values          sonify.Series
	Input           sonify.SourceParams
	ErrorOnValidate error
	ErrorOnCall     error

	validated int
}

// Identity returns source name.
func (m *Source) Identity() string {
	return m.Name
}

// Params returns source parameters.
func (m *Source) Params() sonify.SourceParams {
	return m.Input
}

// Validate returns ErrorOnValidate.
func (m *Source) Validate(ctx context.Context) error {
	m.Lock()
	m.validated++
	m.Unlock()
	return m.ErrorOnValidate
}

// Validations returns number of Validate calls.
func (m *Source) Validations() int {
	m.Lock()
	defer m.Unlock()
	return m.validated
}

// Series returns a copy of values.
func (m *Source) Series(ctx context.Context) (sonify.Series, error) {
	m.advance()
	if m.ErrorOnCall != nil {
		return nil, m.ErrorOnCall
	}
	return append(sonify.Series{}, m.Values...), nil
}

// Animator mocks a pipeline.Animator interface. It writes a placeholder
// into the output file.
type Animator struct {
	counter
	Delay       time.Duration
	ErrorOnCall error
}

// Animate writes fake video.
func (m *Animator) Animate(ctx context.Context, req sonify.Request, path string) error {
	m.advance()
	if err := wait(ctx, m.Delay); err != nil {
		return err
	}
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	return os.WriteFile(path, []byte("video"), 0o644)
}

// Combiner mocks a pipeline.Combiner interface. It concatenates video and
// audio files.
type Combiner struct {
	counter
	ErrorOnCall error
}

// Combine writes fake muxed file.
func (m *Combiner) Combine(ctx context.Context, video, audio, out string) error {
	m.advance()
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	v, err := os.ReadFile(video)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audio)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(v, a...), 0o644)
}

// Backend mocks a pipeline.Backend interface. It renders with the tone
// sequencer unless ErrorOnCall is set.
type Backend struct {
	counter
	Delay       time.Duration
	ErrorOnCall error
	// Fallback marks outcome as fallback from Kind.
	Fallback bool
	Kind     backend.Kind
}

// Select renders request.
func (m *Backend) Select(ctx context.Context, req sonify.Request) (backend.Outcome, error) {
	m.advance()
	if err := wait(ctx, m.Delay); err != nil {
		return backend.Outcome{}, err
	}
	if m.ErrorOnCall != nil {
		return backend.Outcome{}, m.ErrorOnCall
	}
	w, err := m.Render(ctx, req)
	if err != nil {
		return backend.Outcome{}, err
	}
	o := backend.Outcome{Waveform: w, Used: backend.ToneSequencer, Fallback: m.Fallback}
	if !m.Fallback && m.Kind != "" {
		o.Used = m.Kind
	}
	return o, nil
}

// Render implements sonify.Backend.
func (m *Backend) Render(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
	return tone.New().Render(ctx, req)
}

// counter counts calls.
type counter struct {
	sync.Mutex
	calls int
}

func (c *counter) advance() {
	c.Lock()
	defer c.Unlock()
	c.calls++
}

// Calls returns number of calls.
func (c *counter) Calls() int {
	c.Lock()
	defer c.Unlock()
	return c.calls
}

func wait(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
