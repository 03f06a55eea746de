// Package waveform renders audio waveforms into RGBA buffers and caches
// them by content.
//
// A cache key covers the render geometry, colour, style, the beat overlay
// (flag, and with it the item duration and beat positions) and a
// fingerprint of a bounded prefix of the samples. Two tracks sharing
// the same prefix and length collide; that is accepted so keys stay cheap
// to compute for long audio.
package waveform

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/lilseedabe/flickmv/internal/canon"
)

// DefaultFingerprintSamples bounds the sample prefix that is hashed.
const DefaultFingerprintSamples = 4096

// Style selects the waveform drawing.
type Style string

const (
	StyleBars   Style = "bars"
	StyleLine   Style = "line"
	StyleFilled Style = "filled"
)

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	switch s {
	case StyleBars, StyleLine, StyleFilled:
		return true
	}
	return false
}

// RenderConfig describes one waveform image.
type RenderConfig struct {
	Width     int
	Height    int
	Color     string // hex, e.g. "#4ade80"
	Style     Style
	ShowBeats bool

	// Samples are mono PCM values in [-1, 1].
	Samples []float32

	// Duration and BeatTimes position the beat overlay. They are part of
	// the key only when ShowBeats is set.
	Duration  float64
	BeatTimes []float64
}

// Validate checks geometry, style and colour.
func (c RenderConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("waveform: invalid size %dx%d", c.Width, c.Height)
	}
	if !c.Style.Valid() {
		return fmt.Errorf("waveform: unknown style %q", c.Style)
	}
	if _, err := colorful.Hex(c.Color); err != nil {
		return fmt.Errorf("waveform: color %q: %w", c.Color, err)
	}
	return nil
}

// SizeBytes is the RGBA buffer size for the config.
func (c RenderConfig) SizeBytes() int64 {
	return int64(c.Width) * int64(c.Height) * 4
}

// Fingerprint hashes the first n samples and the total sample count with
// FNV-1a.
func Fingerprint(samples []float32, n int) string {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(samples)))
	h.Write(buf[:])
	n = max(0, min(n, len(samples)))
	for _, s := range samples[:n] {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(s))
		h.Write(buf[:4])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns the cache key for c.
func Key(c RenderConfig, fingerprintSamples int) (string, error) {
	col, err := colorful.Hex(c.Color)
	if err != nil {
		return "", fmt.Errorf("waveform: color %q: %w", c.Color, err)
	}
	key := map[string]any{
		"width":       c.Width,
		"height":      c.Height,
		"color":       col.Hex(),
		"style":       string(c.Style),
		"show_beats":  c.ShowBeats,
		"fingerprint": Fingerprint(c.Samples, fingerprintSamples),
	}
	if c.ShowBeats {
		beats := make([]int64, len(c.BeatTimes))
		for i, b := range c.BeatTimes {
			beats[i] = micros(b)
		}
		key["duration_us"] = micros(c.Duration)
		key["beats_us"] = beats
	}
	return canon.Hash(canon.DomainWaveform, key)
}

// micros rounds seconds to whole microseconds; canonical JSON has no floats.
func micros(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}
