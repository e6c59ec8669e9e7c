package backend_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/backend"
	"github.com/dudk/sonify/continuous"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/metric"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/synth"
)

var request = sonify.Request{
	Identity: "x",
	Series:   sonify.Series{0, 1, 2, 1, 0},
	FPS:      5,
}

func options() []backend.Option {
	return []backend.Option{
		backend.WithLogger(log.Discard()),
		backend.WithMetrics(metric.Discard()),
	}
}

func patch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sine.yaml")
	require.NoError(t, synth.DefaultPatch().Save(path))
	return path
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		value    string
		expected backend.Kind
	}{
		{value: "tone-sequencer", expected: backend.ToneSequencer},
		{value: "continuous-local", expected: backend.ContinuousLocal},
		{value: " Continuous-Remote ", expected: backend.ContinuousRemote},
		{value: "", expected: backend.ToneSequencer},
		{value: "surge", expected: backend.ToneSequencer},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, backend.ParseKind(test.value), test.value)
	}
}

func TestConfigYAML(t *testing.T) {
	data := `
backend: continuous-remote
local:
  patch: /etc/sonify/sine.yaml
remote:
  endpoint: http://synth:8080
  timeout: 5s
`
	var c backend.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &c))
	assert.Equal(t, backend.ContinuousRemote, c.Kind)
	assert.Equal(t, "/etc/sonify/sine.yaml", c.Local.PatchPath)
	assert.Equal(t, "http://synth:8080", c.Remote.Endpoint)
	assert.Equal(t, 5*time.Second, c.Remote.Timeout)

	require.NoError(t, yaml.Unmarshal([]byte("backend: whatever\n"), &c))
	assert.Equal(t, backend.ToneSequencer, c.Kind)
}

func TestSelectTone(t *testing.T) {
	s := backend.New(backend.Config{}, options()...)
	assert.Equal(t, backend.ToneSequencer, s.Kind())
	o, err := s.Select(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, backend.ToneSequencer, o.Used)
	assert.False(t, o.Fallback)
	assert.Equal(t, 44100, o.Waveform.Len())
}

func TestSelectLocal(t *testing.T) {
	s := backend.New(backend.Config{
		Kind:  backend.ContinuousLocal,
		Local: backend.Local{PatchPath: patch(t)},
	}, options()...)
	o, err := s.Select(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, backend.ContinuousLocal, o.Used)
	assert.False(t, o.Fallback)
	assert.Equal(t, 44100, o.Waveform.Len())
}

func TestFallbackMissingPatch(t *testing.T) {
	s := backend.New(backend.Config{
		Kind:  backend.ContinuousLocal,
		Local: backend.Local{PatchPath: filepath.Join(t.TempDir(), "missing.yaml")},
	}, options()...)
	o, err := s.Select(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, o.Fallback)
	assert.Equal(t, backend.ToneSequencer, o.Used)
	assert.ErrorIs(t, o.Cause, sonify.ErrBackendUnavailable)
	assert.False(t, o.Waveform.Silent())
	assert.Equal(t, 44100, o.Waveform.Len())

	continuousWave, err := continuous.NewLocal(patch(t)).Render(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, o.Waveform.Equal(continuousWave))
}

func TestFallbackRemote(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unreachable := "http://" + l.Addr().String()
	require.NoError(t, l.Close())

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no synth", http.StatusInternalServerError)
	}))
	defer failing.Close()

	narrowband, err := signal.Bytes(&signal.Waveform{SampleRate: 8000, Samples: make([]float64, 10)})
	require.NoError(t, err)
	mismatched := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(narrowband)
	}))
	defer mismatched.Close()

	for _, endpoint := range []string{unreachable, slow.URL, failing.URL, mismatched.URL} {
		s := backend.New(backend.Config{
			Kind:   backend.ContinuousRemote,
			Remote: backend.Remote{Endpoint: endpoint, Timeout: 100 * time.Millisecond},
		}, options()...)
		o, err := s.Select(context.Background(), request)
		require.NoError(t, err, endpoint)
		assert.True(t, o.Fallback, endpoint)
		assert.Equal(t, backend.ToneSequencer, o.Used, endpoint)
		assert.ErrorIs(t, o.Cause, sonify.ErrRemoteBackend, endpoint)
		assert.Equal(t, signal.SampleRate, o.Waveform.SampleRate, endpoint)
		assert.Equal(t, signal.SamplesFor(signal.SampleRate, request.Series.Duration(request.FPS)), o.Waveform.Len())
	}
}

func TestSelectorLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := backend.New(backend.Config{
		Kind:  backend.ContinuousLocal,
		Local: backend.Local{PatchPath: filepath.Join(t.TempDir(), "missing.yaml")},
	}, backend.WithLogger(logger), backend.WithMetrics(metric.Discard()))
	_, err := s.Select(context.Background(), request)
	require.NoError(t, err)

	// fallback sequencer logs through selector logger
	var rendered *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "rendered tones" {
			rendered = e
		}
	}
	require.NotNil(t, rendered)
	assert.Equal(t, "tone-sequencer", rendered.Data["backend"])
	assert.Equal(t, logrus.DebugLevel, rendered.Level)
}

func TestNoFallback(t *testing.T) {
	failed := errors.New("disk is on fire")
	calls := 0
	primary := sonify.BackendFunc(func(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
		calls++
		return nil, failed
	})
	s := backend.New(backend.Config{Kind: backend.ContinuousLocal}, append(options(), backend.WithPrimary(primary))...)
	_, err := s.Render(context.Background(), request)
	assert.ErrorIs(t, err, failed)
	assert.Equal(t, 1, calls)
}

func TestFallbackOnce(t *testing.T) {
	calls := 0
	primary := sonify.BackendFunc(func(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
		calls++
		return nil, sonify.Errorf(sonify.KindRemoteBackend, "remote request", "connection refused")
	})
	s := backend.New(backend.Config{Kind: backend.ContinuousRemote}, append(options(), backend.WithPrimary(primary))...)
	w, err := s.Render(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 44100, w.Len())

	// tone sequencer failures are returned
	_, err = s.Render(context.Background(), sonify.Request{Series: sonify.Series{1}, FPS: 5})
	assert.ErrorIs(t, err, sonify.ErrInvalidSeries)
}
