package continuous_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/continuous"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/synth"
)

func TestBend(t *testing.T) {
	tests := []struct {
		u    float64
		bend float64
	}{
		{u: 0, bend: -7},
		{u: 0.5, bend: 0},
		{u: 1, bend: 7},
		{u: 0.25, bend: -3.5},
	}
	for _, test := range tests {
		assert.Equal(t, test.bend, continuous.Bend(test.u))
	}
}

func TestBends(t *testing.T) {
	s := make(sonify.Series, 200)
	for i := range s {
		s[i] = math.Sin(float64(i)/7) * 100
	}
	for _, b := range continuous.Bends(s) {
		assert.True(t, b >= -continuous.BendRange && b <= continuous.BendRange, "bend %v", b)
	}
	assert.Equal(t, []float64{-7, -7, -7}, continuous.Bends(sonify.Series{3, 3, 3}))
}

func TestBlocksPerFrame(t *testing.T) {
	assert.Equal(t, 45, continuous.BlocksPerFrame(44100, 30, 32))
	assert.Equal(t, 0, continuous.BlocksPerFrame(44100, 2000, 32))
	assert.Equal(t, 0, continuous.BlocksPerFrame(44100, 0, 32))
}

func patch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sine.yaml")
	require.NoError(t, synth.DefaultPatch().Save(path))
	return path
}

// narrowPatch can't reach full bend range.
func narrowPatch(t *testing.T) string {
	t.Helper()
	p := synth.DefaultPatch()
	p.PitchBendRange = 2
	path := filepath.Join(t.TempDir(), "narrow.yaml")
	require.NoError(t, p.Save(path))
	return path
}

func TestLocalRender(t *testing.T) {
	tests := []struct {
		series   sonify.Series
		fps      int
		expected int
	}{
		{series: sonify.Series{0, 1, 2, 1, 0}, fps: 5, expected: 44100},
		{series: sonify.Series{5, 5, 5, 5}, fps: 4, expected: 44100},
		{series: sonify.Series{1, -1, 1}, fps: 30, expected: 4410},
	}
	l := continuous.NewLocal(patch(t))
	require.NoError(t, l.Available())
	for _, test := range tests {
		w, err := l.Render(context.Background(), sonify.Request{Series: test.series, FPS: test.fps})
		require.NoError(t, err)
		assert.Equal(t, test.expected, w.Len())
		assert.False(t, w.Silent())
		assert.InDelta(t, 1, w.Peak(), 1e-9)
	}
}

func TestLocalUnavailable(t *testing.T) {
	tests := []struct {
		description string
		local       *continuous.Local
		fps         int
	}{
		{description: "no patch", local: continuous.NewLocal(""), fps: 30},
		{description: "missing patch", local: continuous.NewLocal(filepath.Join(t.TempDir(), "missing.yaml")), fps: 30},
		{description: "too many frames", local: continuous.NewLocal(patch(t)), fps: 5000},
		{description: "narrow bend range", local: continuous.NewLocal(narrowPatch(t)), fps: 30},
	}
	for _, test := range tests {
		_, err := test.local.Render(context.Background(), sonify.Request{Series: sonify.Series{1, 2, 3}, FPS: test.fps})
		assert.ErrorIs(t, err, sonify.ErrBackendUnavailable, test.description)
		assert.Equal(t, sonify.KindBackendUnavailable, sonify.KindOf(err), test.description)
	}
}

func TestLocalInvalidSeries(t *testing.T) {
	_, err := continuous.NewLocal(patch(t)).Render(context.Background(), sonify.Request{Series: sonify.Series{1}, FPS: 30})
	assert.ErrorIs(t, err, sonify.ErrInvalidSeries)
}

func TestRenderCanceled(t *testing.T) {
	s, err := synth.New(synth.DefaultPatch(), signal.SampleRate)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = continuous.Render(ctx, s, sonify.Series{1, 2}, 30)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderSynthSampleRate(t *testing.T) {
	tests := []struct {
		sampleRate int
		series     sonify.Series
		fps        int
	}{
		{sampleRate: 22050, series: sonify.Series{0, 1, 2, 1, 0}, fps: 5},
		{sampleRate: 48000, series: sonify.Series{1, -1, 1}, fps: 30},
		{sampleRate: signal.SampleRate, series: sonify.Series{5, 5, 5, 5}, fps: 4},
	}
	for _, test := range tests {
		s, err := synth.New(synth.DefaultPatch(), test.sampleRate)
		require.NoError(t, err)
		w, err := continuous.Render(context.Background(), s, test.series, test.fps)
		require.NoError(t, err)
		assert.Equal(t, test.sampleRate, w.SampleRate)
		assert.Equal(t, signal.SamplesFor(test.sampleRate, test.series.Duration(test.fps)), w.Len())
		assert.False(t, w.Silent())
	}
}
