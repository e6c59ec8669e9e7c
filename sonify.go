package sonify

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/xid"

	"github.com/dudk/sonify/signal"
)

// Series is an ordered sequence of values to sonify. It's never mutated
// once produced.
type Series []float64

// Range is a closed interval of series values.
type Range struct {
	Min float64
	Max float64
}

// SourceParams are the parameters that define how a series is produced.
// Only the fields relevant to the source kind are set.
type SourceParams struct {
	Function  string  `json:"function,omitempty"`
	Ticker    string  `json:"ticker,omitempty"`
	XStart    float64 `json:"x_range_start"`
	XEnd      float64 `json:"x_range_end"`
	NumPoints int     `json:"num_data_points"`
}

// Request carries everything a backend needs to render a waveform.
type Request struct {
	// Identity is the function text or ticker symbol the series came from.
	Identity string
	Params   SourceParams
	Series   Series
	FPS      int
}

// Backend renders a series into a waveform.
type Backend interface {
	Render(ctx context.Context, req Request) (*signal.Waveform, error)
}

// BackendFunc is an adapter to use functions as backends.
type BackendFunc func(ctx context.Context, req Request) (*signal.Waveform, error)

// Render calls f(ctx, req).
func (f BackendFunc) Render(ctx context.Context, req Request) (*signal.Waveform, error) {
	return f(ctx, req)
}

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}

// Validate checks that series has at least two samples and all of them
// are finite numbers.
func (s Series) Validate() error {
	if len(s) < 2 {
		return &Error{
			Kind: KindInvalidSeries,
			Op:   "validate",
			Err:  fmt.Errorf("series has %d samples, at least 2 required", len(s)),
		}
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &Error{
				Kind: KindInvalidSeries,
				Op:   "validate",
				Err:  fmt.Errorf("sample %d is not finite: %v", i, v),
			}
		}
	}
	return nil
}

// Range returns min and max values of the series. Range of empty
// series is zero.
func (s Series) Range() Range {
	if len(s) == 0 {
		return Range{}
	}
	r := Range{Min: s[0], Max: s[0]}
	for _, v := range s[1:] {
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

// Duration returns playback duration in seconds for provided frame rate:
// one sample per frame.
func (s Series) Duration(fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(len(s)) / float64(fps)
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Degenerate is true when the range has zero width.
func (r Range) Degenerate() bool {
	return r.Max == r.Min
}

// Check returns a DegenerateRange error for zero-width range. Pipeline
// never raises it: zero-width ranges are handled by mapping every value to
// the lowest level.
func (r Range) Check() error {
	if r.Degenerate() {
		return &Error{
			Kind: KindDegenerateRange,
			Op:   "range",
			Err:  fmt.Errorf("min and max are both %v", r.Min),
		}
	}
	return nil
}

// Normalize maps v into [0, 1] relative to the range. Zero-width range
// maps everything to 0.
func (r Range) Normalize(v float64) float64 {
	if r.Degenerate() {
		return 0
	}
	return (v - r.Min) / r.Span()
}
