package synth

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Oscillator is a waveform shape.
type Oscillator string

// Available oscillators.
const (
	Sine     Oscillator = "sine"
	Saw      Oscillator = "saw"
	Square   Oscillator = "square"
	Triangle Oscillator = "triangle"
)

// PatchExt is the extension of patch files.
const PatchExt = ".yaml"

var (
	// ErrInvalidPatch is returned when patch file cannot be parsed or
	// contains invalid values.
	ErrInvalidPatch = errors.New("invalid patch")
)

// Patch is a synthesizer preset.
type Patch struct {
	Name       string     `yaml:"name"`
	Oscillator Oscillator `yaml:"oscillator"`
	// BlockSize is number of samples rendered by a single Process call.
	BlockSize int     `yaml:"block_size"`
	Gain      float64 `yaml:"gain"`
	// Attack and Release are in seconds.
	Attack  float64 `yaml:"attack"`
	Release float64 `yaml:"release"`
	// PitchBendRange limits pitch bend in semitones both ways.
	PitchBendRange float64 `yaml:"pitch_bend_range"`
}

// DefaultPatch returns a sine patch with 32 samples blocks and 7
// semitones bend range.
func DefaultPatch() Patch {
	return Patch{
		Name:           "default",
		Oscillator:     Sine,
		BlockSize:      32,
		Gain:           1,
		Attack:         0.005,
		Release:        0.05,
		PitchBendRange: 7,
	}
}

// LoadPatch reads patch from yaml file. Missing fields keep default
// values.
func LoadPatch(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	return ParsePatch(data)
}

// ParsePatch decodes patch from yaml. Unknown fields are rejected.
func ParsePatch(data []byte) (*Patch, error) {
	p := DefaultPatch()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks patch values.
func (p Patch) Validate() error {
	switch p.Oscillator {
	case Sine, Saw, Square, Triangle:
	default:
		return fmt.Errorf("%w: unknown oscillator %q", ErrInvalidPatch, p.Oscillator)
	}
	if p.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidPatch, p.BlockSize)
	}
	if p.Gain <= 0 {
		return fmt.Errorf("%w: gain must be positive, got %v", ErrInvalidPatch, p.Gain)
	}
	if p.Attack < 0 || p.Release < 0 {
		return fmt.Errorf("%w: envelope times must not be negative", ErrInvalidPatch)
	}
	if p.PitchBendRange <= 0 {
		return fmt.Errorf("%w: pitch bend range must be positive, got %v", ErrInvalidPatch, p.PitchBendRange)
	}
	return nil
}

// Save writes patch to yaml file.
func (p Patch) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
