// Package signal provides the waveform type shared by all backends. It
// allows to:
//	- normalize mono float signal by its peak
//	- convert float signal to int PCM and backward
//	- encode and decode waveforms as wav
package signal

import (
	"math"
	"time"
)

// SampleRate is the sample rate of every rendered waveform.
const SampleRate = 44100

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// Waveform is a mono float signal. Samples are expected to be within
// [-1, 1].
type Waveform struct {
	SampleRate int
	Samples    []float64
}

// New returns a silent waveform of provided length.
func New(sampleRate, length int) *Waveform {
	return &Waveform{
		SampleRate: sampleRate,
		Samples:    make([]float64, length),
	}
}

// SamplesFor returns number of samples needed to hold provided number of
// seconds.
func SamplesFor(sampleRate int, seconds float64) int {
	return int(math.Round(seconds * float64(sampleRate)))
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// Len returns number of samples.
func (w *Waveform) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Samples)
}

// Duration returns time duration of the waveform.
func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate == 0 {
		return 0
	}
	return DurationOf(w.SampleRate, int64(len(w.Samples)))
}

// Peak returns max absolute sample value.
func (w *Waveform) Peak() float64 {
	var peak float64
	for _, v := range w.Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Silent is true if all samples are zeros.
func (w *Waveform) Silent() bool {
	return w.Peak() == 0
}

// Normalize divides all samples by the peak value. Silent waveform is left
// untouched and false is returned.
func (w *Waveform) Normalize() bool {
	peak := w.Peak()
	if peak == 0 {
		return false
	}
	for i := range w.Samples {
		w.Samples[i] /= peak
	}
	return true
}

// AsInt converts float signal to int PCM of provided bit depth. Values out
// of [-1, 1] are clipped, the rest are rounded to the nearest int.
func (w *Waveform) AsInt(bitDepth BitDepth) []int {
	multiplier := bitDepth.devider()
	ints := make([]int, len(w.Samples))
	for i, v := range w.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		ints[i] = int(math.Round(v * multiplier))
	}
	return ints
}

// FromInt converts int PCM of provided bit depth to waveform.
func FromInt(ints []int, bitDepth BitDepth, sampleRate int) *Waveform {
	devider := bitDepth.devider()
	w := New(sampleRate, len(ints))
	for i, v := range ints {
		w.Samples[i] = float64(v) / devider
	}
	return w
}

// Equal is true if both waveforms have the same sample rate and samples.
func (w *Waveform) Equal(other *Waveform) bool {
	if w == nil || other == nil {
		return w == other
	}
	if w.SampleRate != other.SampleRate || len(w.Samples) != len(other.Samples) {
		return false
	}
	for i := range w.Samples {
		if w.Samples[i] != other.Samples[i] {
			return false
		}
	}
	return true
}
