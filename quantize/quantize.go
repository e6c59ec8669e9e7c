// Package quantize maps continuous series values onto a fixed set of
// discrete pitch levels.
package quantize

import (
	"fmt"
	"math"

	"github.com/dudk/sonify"
)

const (
	// Semitones is the number of pitch classes in an octave.
	Semitones = 12
	// KeyboardOctaves is the number of octaves on the keyboard, 0 to 8.
	KeyboardOctaves = 9
	// SkippedOctaves are dropped at both ends of the keyboard: the lowest
	// are inaudible and the highest sound harsh.
	SkippedOctaves = 2
	// UsableOctaves is the number of octaves levels are spread over.
	UsableOctaves = KeyboardOctaves - 2*SkippedOctaves
	// Levels is the number of discrete pitch levels.
	Levels = Semitones * UsableOctaves
)

// noteNames are pitch classes in ascending order.
var noteNames = [Semitones]string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

// PitchLevel is one discrete pitch: a pitch class in an octave.
type PitchLevel struct {
	Index    int
	Semitone int
	Octave   int
}

// Level returns pitch level for flat level index.
func Level(j int) PitchLevel {
	return PitchLevel{
		Index:    j,
		Semitone: j % Semitones,
		Octave:   Octave(j),
	}
}

// Octave returns the octave of flat level index. The octave implied by
// j/12 is shifted past the skipped low octaves and clamped to the usable
// band, so levels of the top group repeat the octave below it.
func Octave(j int) int {
	group := j / Semitones
	return clamp(UsableOctaves, group-SkippedOctaves, group+SkippedOctaves)
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// Name returns note name of the level, e.g. "c#4".
func (l PitchLevel) Name() string {
	return fmt.Sprintf("%s%d", noteNames[l.Semitone], l.Octave)
}

// Frequency returns frequency of the level in Hz, A4 is 440 Hz.
func (l PitchLevel) Frequency() float64 {
	return Frequency(l.Semitone, l.Octave)
}

// Frequency returns frequency in Hz of a pitch class in an octave.
func Frequency(semitone, octave int) float64 {
	midi := (octave+1)*Semitones + semitone
	return 440 * math.Pow(2, float64(midi-69)/Semitones)
}

// Map is a uniform linear partition of a series range into Levels buckets.
// Bucket j holds values in [Lower(j), Upper(j)), the top bucket also holds
// the range max.
type Map struct {
	r      sonify.Range
	bounds [Levels]float64
}

// New creates a map for provided range. Zero-width range collapses all
// bounds to min.
func New(r sonify.Range) *Map {
	m := Map{r: r}
	for j := range m.bounds {
		m.bounds[j] = r.Min + r.Span()*float64(j+1)/Levels
	}
	m.bounds[Levels-1] = r.Max
	return &m
}

// Range returns the range this map partitions.
func (m *Map) Range() sonify.Range {
	return m.r
}

// Degenerate is true if the map was built for a zero-width range.
func (m *Map) Degenerate() bool {
	return m.r.Degenerate()
}

// Upper returns upper bound of bucket j.
func (m *Map) Upper(j int) float64 {
	return m.bounds[j]
}

// Lower returns lower bound of bucket j.
func (m *Map) Lower(j int) float64 {
	if j == 0 {
		return m.r.Min
	}
	return m.bounds[j-1]
}

// Level returns the index of the first bucket, in ascending order, whose
// upper bound is greater than v. Values not below any bound belong to the
// top bucket. Degenerate map always returns 0.
func (m *Map) Level(v float64) int {
	if m.Degenerate() {
		return 0
	}
	for j, upper := range m.bounds {
		if v < upper {
			return j
		}
	}
	return Levels - 1
}

// Levels maps every value of the series.
func (m *Map) Levels(s sonify.Series) []int {
	levels := make([]int, len(s))
	for i, v := range s {
		levels[i] = m.Level(v)
	}
	return levels
}
