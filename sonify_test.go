package sonify_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/sonify"
)

func TestSeriesValidate(t *testing.T) {
	tests := []struct {
		description string
		series      sonify.Series
		valid       bool
	}{
		{
			description: "empty",
			series:      nil,
		},
		{
			description: "single sample",
			series:      sonify.Series{1},
		},
		{
			description: "nan",
			series:      sonify.Series{1, math.NaN(), 2},
		},
		{
			description: "inf",
			series:      sonify.Series{1, math.Inf(-1)},
		},
		{
			description: "two samples",
			series:      sonify.Series{1, 2},
			valid:       true,
		},
		{
			description: "constant",
			series:      sonify.Series{5, 5, 5, 5},
			valid:       true,
		},
	}
	for _, test := range tests {
		err := test.series.Validate()
		if test.valid {
			assert.NoError(t, err, test.description)
			continue
		}
		assert.True(t, errors.Is(err, sonify.ErrInvalidSeries), test.description)
		assert.Equal(t, sonify.KindInvalidSeries, sonify.KindOf(err), test.description)
	}
}

func TestSeriesRange(t *testing.T) {
	s := sonify.Series{0, 1, 2, 1, 0}
	r := s.Range()
	assert.Equal(t, sonify.Range{Min: 0, Max: 2}, r)
	assert.False(t, r.Degenerate())
	assert.NoError(t, r.Check())
	assert.Equal(t, 0.5, r.Normalize(1))
	assert.Equal(t, 1.0, s.Duration(5))

	r = sonify.Series{5, 5, 5, 5}.Range()
	assert.True(t, r.Degenerate())
	assert.True(t, errors.Is(r.Check(), sonify.ErrDegenerateRange))
	assert.Equal(t, 0.0, r.Normalize(5))
}

func TestErrorKinds(t *testing.T) {
	root := sonify.Errorf(sonify.KindRemoteBackend, "remote", "status %d", 502)
	wrapped := &sonify.Error{Kind: sonify.KindStageFailure, Op: "audio", Err: fmt.Errorf("render: %w", root)}

	assert.True(t, errors.Is(wrapped, sonify.ErrStageFailure))
	assert.True(t, errors.Is(wrapped, sonify.ErrRemoteBackend))
	assert.False(t, errors.Is(wrapped, sonify.ErrInvalidSeries))
	assert.Equal(t, sonify.KindStageFailure, sonify.KindOf(wrapped))
	assert.Equal(t, sonify.KindRemoteBackend, sonify.RootKind(wrapped))
	assert.Equal(t, sonify.KindUnknown, sonify.KindOf(errors.New("plain")))
	assert.Equal(t, "remote_backend", sonify.KindRemoteBackend.String())
	assert.Contains(t, wrapped.Error(), "status 502")
}
