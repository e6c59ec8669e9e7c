package telemetry_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/dudk/sonify/internal/config"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/internal/telemetry"
	"github.com/dudk/sonify/metric"
)

func reset(t *testing.T) {
	t.Cleanup(func() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
	})
}

func TestMetricsHandler(t *testing.T) {
	reset(t)
	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, config.Default().Telemetry, io.Discard, log.Discard())
	require.NoError(t, err)
	defer tel.Shutdown(ctx)

	metric.Global().Fallback(ctx, "continuous-remote", "remote_backend")

	rec := httptest.NewRecorder()
	tel.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "sonify_backend_fallbacks_total")
	assert.Contains(t, rec.Body.String(), `from="continuous-remote"`)
}

func TestStdoutTraces(t *testing.T) {
	reset(t)
	ctx := context.Background()
	cfg := config.Default().Telemetry
	cfg.Traces = true
	var out bytes.Buffer
	tel, err := telemetry.Setup(ctx, cfg, &out, log.Discard())
	require.NoError(t, err)

	_, span := otel.Tracer(metric.ScopeName).Start(ctx, "sonify.parse")
	span.End()
	require.NoError(t, tel.Shutdown(ctx))
	assert.Contains(t, out.String(), "sonify.parse")
}
