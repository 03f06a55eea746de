package snap

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidSubdivisions lists the accepted grid subdivisions.
var ValidSubdivisions = []int{1, 2, 4, 8, 16}

// Config is the beat grid configuration. It is only changed through
// Engine.UpdateConfig and never mutated by a resolution.
type Config struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	SnapToBeat       bool    `json:"snap_to_beat" yaml:"snap_to_beat"`
	SnapToBar        bool    `json:"snap_to_bar" yaml:"snap_to_bar"`
	Subdivisions     int     `json:"subdivisions" yaml:"subdivisions"`
	QuantizeStrength float64 `json:"quantize_strength" yaml:"quantize_strength"`
}

// DefaultConfig returns an enabled grid snapping to beats and bars at
// sixteenth-note subdivisions with medium strength.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		SnapToBeat:       true,
		SnapToBar:        true,
		Subdivisions:     4,
		QuantizeStrength: 0.5,
	}
}

// Validate checks the configuration against its invariants.
func (c Config) Validate() error {
	if !slices.Contains(ValidSubdivisions, c.Subdivisions) {
		return newValidationError("subdivisions", ErrCodeSubdivision,
			"must be one of %v, got %d", ValidSubdivisions, c.Subdivisions)
	}
	if math.IsNaN(c.QuantizeStrength) || c.QuantizeStrength < 0 || c.QuantizeStrength > 1 {
		return newValidationError("quantize_strength", ErrCodeQuantizeStrength,
			"must be within [0,1], got %v", c.QuantizeStrength)
	}
	return nil
}

// Analysis is the beat analysis produced by an external detector.
// It is treated as immutable: re-analysis replaces it wholesale.
type Analysis struct {
	BPM       float64   `json:"bpm" yaml:"bpm"`
	BeatTimes []float64 `json:"beat_times" yaml:"beat_times"`
	Bars      []float64 `json:"bars" yaml:"bars"`
}

// Validate checks bpm and time ordering.
func (a *Analysis) Validate() error {
	if !(a.BPM > 0) || math.IsInf(a.BPM, 0) {
		return newValidationError("bpm", ErrCodeBPM, "must be a positive finite number, got %v", a.BPM)
	}
	if err := validateTimes("beat_times", a.BeatTimes); err != nil {
		return err
	}
	return validateTimes("bars", a.Bars)
}

// BeatDuration returns the length of one beat in seconds.
func (a *Analysis) BeatDuration() float64 {
	return 60 / a.BPM
}

func (a *Analysis) clone() *Analysis {
	return &Analysis{
		BPM:       a.BPM,
		BeatTimes: slices.Clone(a.BeatTimes),
		Bars:      slices.Clone(a.Bars),
	}
}

func validateTimes(field string, times []float64) error {
	prev := 0.0
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return newValidationError(field, ErrCodeTimes, "[%d] must be a finite time >= 0, got %v", i, t)
		}
		if i > 0 && t < prev {
			return newValidationError(field, ErrCodeTimes, "[%d] = %v is before [%d] = %v", i, t, i-1, prev)
		}
		prev = t
	}
	return nil
}

// LoadAnalysis reads an analysis file. JSON is accepted as a YAML subset.
func LoadAnalysis(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis: %w", err)
	}
	var a Analysis
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse analysis %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Kind classifies a snap candidate.
type Kind int

const (
	KindNone Kind = iota
	KindCustom
	KindSubdivision
	KindBeat
	KindBar
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCustom:
		return "custom"
	case KindSubdivision:
		return "subdivision"
	case KindBeat:
		return "beat"
	case KindBar:
		return "bar"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Candidate is a time eligible to attract a dragged position.
type Candidate struct {
	Time float64
	Kind Kind
}

// View carries the per-query geometry a resolution depends on.
type View struct {
	// Duration is the timeline length in seconds. Zero disables subdivision
	// candidates and clamping.
	Duration float64

	// PixelsPerSecond couples the tolerance to the current zoom.
	// Zero disables the pixel band.
	PixelsPerSecond float64
}

// Result is the outcome of a resolution.
type Result struct {
	Time    float64
	Snapped bool
	Kind    Kind
}
