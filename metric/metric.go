// Package metric provides instruments to measure sonification runs.
package metric

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScopeName is the instrumentation scope of all instruments.
const ScopeName = "github.com/dudk/sonify"

const (
	// StageDuration measures stage duration in seconds.
	StageDuration = "sonify.stage.duration"
	// StageCounter counts finished stages by status.
	StageCounter = "sonify.stage.runs"
	// FallbackCounter counts backend fallbacks.
	FallbackCounter = "sonify.backend.fallbacks"
	// SampleCounter counts rendered samples.
	SampleCounter = "sonify.backend.samples"
	// AudioDuration measures rendered audio in seconds.
	AudioDuration = "sonify.backend.audio.duration"
)

// Attribute keys.
const (
	StageKey   = attribute.Key("stage")
	StatusKey  = attribute.Key("status")
	KindKey    = attribute.Key("kind")
	BackendKey = attribute.Key("backend")
	FromKey    = attribute.Key("from")
)

// Metrics holds all instruments.
type Metrics struct {
	stageDuration metric.Float64Histogram
	stages        metric.Int64Counter
	fallbacks     metric.Int64Counter
	samples       metric.Int64Counter
	audio         metric.Float64Counter
}

// New creates instruments with provided meter provider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(ScopeName)
	var (
		m   Metrics
		err error
	)
	if m.stageDuration, err = meter.Float64Histogram(StageDuration,
		metric.WithDescription("Duration of pipeline stages"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.stages, err = meter.Int64Counter(StageCounter,
		metric.WithDescription("Number of finished pipeline stages"),
	); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter(FallbackCounter,
		metric.WithDescription("Number of fallbacks to the tone sequencer"),
	); err != nil {
		return nil, err
	}
	if m.samples, err = meter.Int64Counter(SampleCounter,
		metric.WithDescription("Number of rendered samples"),
	); err != nil {
		return nil, err
	}
	if m.audio, err = meter.Float64Counter(AudioDuration,
		metric.WithDescription("Duration of rendered audio"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Global returns instruments of the global meter provider. If instruments
// cannot be created, noop ones are returned.
func Global() *Metrics {
	m, err := New(otel.GetMeterProvider())
	if err != nil {
		otel.Handle(err)
		return Discard()
	}
	return m
}

// Discard returns instruments which record nothing.
func Discard() *Metrics {
	m, _ := New(noop.NewMeterProvider())
	return m
}

// MeasureFunc captures stage outcome when stage is done.
type MeasureFunc func(status, kind string)

// Stage starts measuring a stage. This closure is needed to capture
// duration until the stage is actually done.
func (m *Metrics) Stage(ctx context.Context, stage string) MeasureFunc {
	startedAt := time.Now()
	return func(status, kind string) {
		attrs := metric.WithAttributes(
			StageKey.String(stage),
			StatusKey.String(status),
			KindKey.String(kind),
		)
		m.stageDuration.Record(ctx, time.Since(startedAt).Seconds(), attrs)
		m.stages.Add(ctx, 1, attrs)
	}
}

// Fallback records fallback from a failed backend.
func (m *Metrics) Fallback(ctx context.Context, from, kind string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		FromKey.String(from),
		KindKey.String(kind),
	))
}

// Rendered records waveform rendered by a backend.
func (m *Metrics) Rendered(ctx context.Context, backend string, samples int, duration time.Duration) {
	attrs := metric.WithAttributes(BackendKey.String(backend))
	m.samples.Add(ctx, int64(samples), attrs)
	m.audio.Add(ctx, duration.Seconds(), attrs)
}
