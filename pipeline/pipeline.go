// Package pipeline runs sonification as a linear sequence of stages:
// parse, animate, audio and combine. Every stage produces an artifact the
// next one requires, and every stage can be invoked on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/artifact"
	"github.com/dudk/sonify/backend"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/metric"
	"github.com/dudk/sonify/signal"
)

// DefaultFPS is the default frame rate: one series sample per frame.
const DefaultFPS = 30

var (
	// ErrNoAnimator is returned when animate stage runs without animator.
	ErrNoAnimator = errors.New("animator is not set")
	// ErrNoCombiner is returned when combine stage runs without combiner.
	ErrNoCombiner = errors.New("combiner is not set")
)

// Source produces the series. Validate is called by parse stage. Series
// is called by every stage which needs the series.
type Source interface {
	Identity() string
	Params() sonify.SourceParams
	Validate(ctx context.Context) error
	Series(ctx context.Context) (sonify.Series, error)
}

// Animator renders line plot animation of the series into a video file.
type Animator interface {
	Animate(ctx context.Context, req sonify.Request, path string) error
}

// Combiner muxes video and audio files into one.
type Combiner interface {
	Combine(ctx context.Context, video, audio, out string) error
}

// Backend renders the waveform and reports which backend was used.
type Backend interface {
	Select(ctx context.Context, req sonify.Request) (backend.Outcome, error)
}

// Orchestrator runs pipeline stages.
type Orchestrator struct {
	store      *artifact.Store
	fps        int
	animator   Animator
	backend    Backend
	combiner   Combiner
	concurrent bool

	metrics *metric.Metrics
	tracer  trace.Tracer
	log     logrus.FieldLogger
}

// Option configures orchestrator.
type Option func(o *Orchestrator) error

// WithFPS sets frame rate.
func WithFPS(fps int) Option {
	return func(o *Orchestrator) error {
		if fps <= 0 {
			return fmt.Errorf("fps must be positive, got %d", fps)
		}
		o.fps = fps
		return nil
	}
}

// WithAnimator sets animator.
func WithAnimator(a Animator) Option {
	return func(o *Orchestrator) error {
		o.animator = a
		return nil
	}
}

// WithBackend sets audio backend.
func WithBackend(b Backend) Option {
	return func(o *Orchestrator) error {
		o.backend = b
		return nil
	}
}

// WithCombiner sets combiner.
func WithCombiner(c Combiner) Option {
	return func(o *Orchestrator) error {
		o.combiner = c
		return nil
	}
}

// WithConcurrent allows animate and audio stages to run concurrently.
func WithConcurrent(concurrent bool) Option {
	return func(o *Orchestrator) error {
		o.concurrent = concurrent
		return nil
	}
}

// WithLogger sets logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) error {
		o.log = l
		return nil
	}
}

// WithMetrics sets metrics instruments.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// New creates orchestrator which keeps artifacts in the store. Tone
// sequencer is used when no backend is provided.
func New(store *artifact.Store, options ...Option) (*Orchestrator, error) {
	o := Orchestrator{
		store:   store,
		fps:     DefaultFPS,
		metrics: metric.Global(),
		tracer:  otel.Tracer(metric.ScopeName),
		log:     log.GetLogger(),
	}
	for _, option := range options {
		if err := option(&o); err != nil {
			return nil, err
		}
	}
	if o.backend == nil {
		o.backend = backend.New(backend.Config{}, backend.WithLogger(o.log), backend.WithMetrics(o.metrics))
	}
	return &o, nil
}

// Store returns artifact store.
func (o *Orchestrator) Store() *artifact.Store {
	return o.store
}

// Run executes all stages and halts on the first failed one. Artifacts of
// successful stages are kept. With concurrency enabled animate and audio
// run at the same time and combine waits for both.
func (o *Orchestrator) Run(ctx context.Context, src Source) Report {
	r := Report{
		RunID:    sonify.NewUID(),
		Identity: src.Identity(),
		State:    Parse,
	}
	l := o.log.WithFields(logrus.Fields{
		"run":      r.RunID,
		"identity": r.Identity,
	})
	ctx, span := o.tracer.Start(ctx, "sonify.run", trace.WithAttributes(
		attribute.String("run.id", r.RunID),
		attribute.String("identity", r.Identity),
	))
	defer span.End()

	ok := r.add(o.Parse(ctx, src))
	if ok {
		r.State = Animate
		if o.concurrent {
			ok = r.add(o.parallel(ctx, src)...)
		} else {
			ok = r.add(o.Animate(ctx, src))
			if ok {
				r.State = Audio
				ok = r.add(o.Audio(ctx, src))
			}
		}
	}
	if ok {
		r.State = Combine
		res := o.Combine(ctx, src)
		if ok = r.add(res); ok {
			r.Artifact = res.Artifact
			r.State = Done
		}
	}
	if !ok {
		res, _ := r.Failure()
		r.State = Failed
		span.SetStatus(codes.Error, res.Reason)
		l.WithFields(logrus.Fields{
			"stage": res.Stage,
			"kind":  res.Kind,
		}).Warn(res.Reason)
		return r
	}
	l.WithField("artifact", r.Artifact).Info("sonification done")
	return r
}

// add appends results and returns true if all of them are successful.
func (r *Report) add(results ...Result) bool {
	ok := true
	for _, res := range results {
		r.Results = append(r.Results, res)
		if !res.OK() {
			ok = false
		}
	}
	return ok
}

// parallel runs animate and audio concurrently. If one fails the other
// is canceled, cancellation failure is reported only if it's the only one.
func (o *Orchestrator) parallel(ctx context.Context, src Source) []Result {
	var results [2]Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = o.Animate(gctx, src)
		return results[0].Err()
	})
	g.Go(func() error {
		results[1] = o.Audio(gctx, src)
		return results[1].Err()
	})
	_ = g.Wait()

	if !results[0].OK() && !results[1].OK() {
		if canceled(results[0]) && !canceled(results[1]) {
			return []Result{results[1]}
		}
		return []Result{results[0]}
	}
	return results[:]
}

// Parse validates the source and ensures the working directory exists.
func (o *Orchestrator) Parse(ctx context.Context, src Source) Result {
	return o.stage(ctx, Parse, src.Identity(), func(ctx context.Context) (Result, error) {
		if err := o.store.EnsureDirectory(); err != nil {
			return Result{}, err
		}
		if err := src.Validate(ctx); err != nil {
			return Result{}, err
		}
		return success(Parse, ""), nil
	})
}

// Animate renders the animation artifact.
func (o *Orchestrator) Animate(ctx context.Context, src Source) Result {
	return o.stage(ctx, Animate, src.Identity(), func(ctx context.Context) (Result, error) {
		if o.animator == nil {
			return Result{}, ErrNoAnimator
		}
		req, err := o.request(ctx, src)
		if err != nil {
			return Result{}, err
		}
		path, err := o.store.Write(artifact.Animation, req.Identity, func(tmp string) error {
			return o.animator.Animate(ctx, req, tmp)
		})
		if err != nil {
			return Result{}, err
		}
		return success(Animate, path), nil
	})
}

// Audio renders the audio artifact with the backend.
func (o *Orchestrator) Audio(ctx context.Context, src Source) Result {
	return o.stage(ctx, Audio, src.Identity(), func(ctx context.Context) (Result, error) {
		req, err := o.request(ctx, src)
		if err != nil {
			return Result{}, err
		}
		outcome, err := o.backend.Select(ctx, req)
		if err != nil {
			return Result{}, err
		}
		path, err := o.store.Write(artifact.Audio, req.Identity, func(tmp string) error {
			return signal.WriteFile(tmp, outcome.Waveform)
		})
		if err != nil {
			return Result{}, err
		}
		res := success(Audio, path)
		res.Backend = string(outcome.Used)
		res.Fallback = outcome.Fallback
		return res, nil
	})
}

// Combine muxes animation and audio into the final artifact. Both must
// exist.
func (o *Orchestrator) Combine(ctx context.Context, src Source) Result {
	identity := src.Identity()
	return o.stage(ctx, Combine, identity, func(ctx context.Context) (Result, error) {
		if o.combiner == nil {
			return Result{}, ErrNoCombiner
		}
		for _, key := range []artifact.Key{artifact.Animation, artifact.Audio} {
			// missing inputs fail the stage, not-found kind stays with cleanup
			if err := o.store.Require(key, identity); err != nil {
				return Result{}, sonify.Errorf(sonify.KindStageFailure, string(Combine), "missing %s artifact %s", key, o.store.Path(key, identity))
			}
		}
		video := o.store.Path(artifact.Animation, identity)
		audio := o.store.Path(artifact.Audio, identity)
		path, err := o.store.Write(artifact.Final, identity, func(tmp string) error {
			return o.combiner.Combine(ctx, video, audio, tmp)
		})
		if err != nil {
			return Result{}, err
		}
		return success(Combine, path), nil
	})
}

// Cleanup deletes all artifacts of the identity. Missing artifacts are
// skipped, so cleanup can be repeated.
func (o *Orchestrator) Cleanup(ctx context.Context, identity string) Result {
	return o.stage(ctx, Cleanup, identity, func(ctx context.Context) (Result, error) {
		if err := o.store.Delete(identity, artifact.Animation, artifact.Audio, artifact.Final); err != nil {
			return Result{}, err
		}
		return success(Cleanup, ""), nil
	})
}

// request builds render request from freshly computed series.
func (o *Orchestrator) request(ctx context.Context, src Source) (sonify.Request, error) {
	series, err := src.Series(ctx)
	if err != nil {
		return sonify.Request{}, err
	}
	return sonify.Request{
		Identity: src.Identity(),
		Params:   src.Params(),
		Series:   series,
		FPS:      o.fps,
	}, nil
}

// stage runs fn within a span and records metrics and logs.
func (o *Orchestrator) stage(ctx context.Context, stage Stage, identity string, fn func(context.Context) (Result, error)) Result {
	ctx, span := o.tracer.Start(ctx, "sonify."+string(stage), trace.WithAttributes(
		attribute.String("identity", identity),
	))
	defer span.End()
	done := o.metrics.Stage(ctx, string(stage))
	l := o.log.WithFields(logrus.Fields{
		"stage":    stage,
		"identity": identity,
	})
	l.Debug("stage started")

	res, err := fn(ctx)
	if err != nil {
		res = failure(stage, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Reason)
		done(string(res.Status), res.Kind.String())
		l.WithError(err).WithField("kind", res.Kind).Debug("stage failed")
		return res
	}
	done(string(res.Status), "")
	l.WithFields(logrus.Fields{
		"artifact": res.Artifact,
		"backend":  res.Backend,
		"fallback": res.Fallback,
	}).Debug("stage done")
	return res
}
