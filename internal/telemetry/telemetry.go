// Package telemetry wires OpenTelemetry SDK providers: metrics are
// exported for Prometheus scraping, traces go to an OTLP collector or
// stdout.
package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/dudk/sonify/internal/config"
)

// Telemetry holds providers set as otel globals.
type Telemetry struct {
	// Handler serves metrics in Prometheus format.
	Handler http.Handler

	shutdown []func(context.Context) error
}

// Setup creates providers and registers them globally. Tracing is
// enabled when an OTLP endpoint is configured or traces are requested,
// in the latter case spans are printed to traceOut.
func Setup(ctx context.Context, cfg config.TelemetryConfig, traceOut io.Writer, logger logrus.FieldLogger) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	var t Telemetry
	tp, err := initTracer(ctx, cfg, res, traceOut, logger)
	if err != nil {
		return nil, err
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}

	mp, handler := initMetrics(res, logger)
	otel.SetMeterProvider(mp)
	t.Handler = handler
	t.shutdown = append(t.shutdown, mp.Shutdown)
	return &t, nil
}

// Shutdown flushes and stops providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func initTracer(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, out io.Writer, logger logrus.FieldLogger) (*sdktrace.TracerProvider, error) {
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"exporter": "otlp",
			"endpoint": endpoint,
		}).Info("tracing initialized")
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		), nil
	}
	if !cfg.Traces {
		return nil, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	logger.WithField("exporter", "stdout").Info("tracing initialized")
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// initMetrics uses a dedicated registry, so repeated setup doesn't
// collide with collectors registered before.
func initMetrics(res *resource.Resource, logger logrus.FieldLogger) (*sdkmetric.MeterProvider, http.Handler) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		logger.WithError(err).Warn("failed to initialize prometheus exporter")
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), http.NotFoundHandler()
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
