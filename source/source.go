// Package source produces series to sonify: samples of a math expression,
// closing prices of a ticker or row brightness of an image.
package source

import (
	"github.com/dudk/sonify"
)

// Linspace returns n evenly spaced values over [start, end]. Both ends are
// included.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	values := make([]float64, n)
	if n == 1 {
		values[0] = start
		return values
	}
	step := (end - start) / float64(n-1)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	values[n-1] = end
	return values
}

func invalid(op string, format string, args ...interface{}) error {
	return sonify.Errorf(sonify.KindInvalidSeries, op, format, args...)
}
