// Package backend selects the synthesis backend from startup config and
// falls back to the tone sequencer when the selected one fails.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/continuous"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/metric"
	"github.com/dudk/sonify/remote"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/tone"
)

// Kind is a synthesis backend kind.
type Kind string

// Backend kinds.
const (
	ToneSequencer    Kind = "tone-sequencer"
	ContinuousLocal  Kind = "continuous-local"
	ContinuousRemote Kind = "continuous-remote"
)

// ParseKind parses backend kind. Empty and unknown values are
// ToneSequencer.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case ContinuousLocal, ContinuousRemote:
		return k
	}
	return ToneSequencer
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// Config selects and configures the backend.
type Config struct {
	Kind   Kind   `yaml:"backend"`
	Local  Local  `yaml:"local"`
	Remote Remote `yaml:"remote"`
}

// Local configures continuous-local backend.
type Local struct {
	PatchPath string `yaml:"patch"`
}

// Remote configures continuous-remote backend.
type Remote struct {
	Endpoint string        `yaml:"endpoint"`
	Subject  string        `yaml:"subject"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Outcome is a rendered waveform together with the backend which
// actually rendered it.
type Outcome struct {
	Waveform *signal.Waveform
	Used     Kind
	// Fallback is true when the configured backend failed and the tone
	// sequencer was used instead. Cause holds the failure.
	Fallback bool
	Cause    error
}

// Selector renders with the configured backend and falls back to the tone
// sequencer once, with no retries.
type Selector struct {
	kind     Kind
	primary  sonify.Backend
	fallback sonify.Backend

	metrics *metric.Metrics
	log     logrus.FieldLogger
}

// Option configures selector.
type Option func(*Selector)

// WithLogger sets logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Selector) {
		s.log = l
	}
}

// WithMetrics sets metrics instruments.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Selector) {
		s.metrics = m
	}
}

// WithPrimary replaces the backend built from config.
func WithPrimary(b sonify.Backend) Option {
	return func(s *Selector) {
		s.primary = b
	}
}

// New creates selector for provided config.
func New(c Config, options ...Option) *Selector {
	s := Selector{
		kind:    ParseKind(string(c.Kind)),
		metrics: metric.Global(),
		log:     log.GetLogger(),
	}
	for _, option := range options {
		option(&s)
	}
	s.fallback = tone.New().WithLogger(s.log)
	if s.primary == nil {
		switch s.kind {
		case ContinuousLocal:
			s.primary = continuous.NewLocal(c.Local.PatchPath).WithLogger(s.log)
		case ContinuousRemote:
			s.primary = remote.NewClient(c.Remote.Endpoint, c.Remote.Subject, c.Remote.Timeout).WithLogger(s.log)
		}
	}
	if s.kind == ToneSequencer {
		s.primary = nil
	}
	return &s
}

// Kind returns configured backend kind.
func (s *Selector) Kind() Kind {
	return s.kind
}

// Select renders the request. Only BackendUnavailable and RemoteBackend
// failures of the configured backend trigger the fallback, any other error
// is returned as is.
func (s *Selector) Select(ctx context.Context, req sonify.Request) (Outcome, error) {
	l := s.log.WithFields(logrus.Fields{
		"backend":  s.kind,
		"identity": req.Identity,
	})
	if s.primary == nil {
		return s.render(ctx, s.fallback, ToneSequencer, req)
	}
	o, err := s.render(ctx, s.primary, s.kind, req)
	if err == nil {
		return o, nil
	}
	if !fallbackable(err) {
		return Outcome{}, err
	}
	l.WithError(err).Warn("backend failed, falling back to tone sequencer")
	s.metrics.Fallback(ctx, string(s.kind), sonify.KindOf(err).String())
	o, ferr := s.render(ctx, s.fallback, ToneSequencer, req)
	if ferr != nil {
		return Outcome{}, fmt.Errorf("fallback after %v: %w", err, ferr)
	}
	o.Fallback = true
	o.Cause = err
	return o, nil
}

// Render implements sonify.Backend.
func (s *Selector) Render(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
	o, err := s.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Waveform, nil
}

func (s *Selector) render(ctx context.Context, b sonify.Backend, kind Kind, req sonify.Request) (Outcome, error) {
	w, err := b.Render(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	s.metrics.Rendered(ctx, string(kind), w.Len(), w.Duration())
	s.log.WithFields(logrus.Fields{
		"backend":  kind,
		"samples":  w.Len(),
		"duration": w.Duration(),
	}).Debug("rendered")
	return Outcome{Waveform: w, Used: kind}, nil
}

func fallbackable(err error) bool {
	return errors.Is(err, sonify.ErrBackendUnavailable) || errors.Is(err, sonify.ErrRemoteBackend)
}
