// Package config loads the editor configuration.
//
// A config file is YAML decoded strictly (unknown fields are errors) over
// Defaults, then checked against an embedded CUE schema. Every failure is
// a *ConfigError carrying a code, the offending field and, for YAML
// errors, the line.
package config

import (
	"time"

	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/scale"
	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/waveform"
)

// Config is the complete editor configuration.
type Config struct {
	Scale    scale.Config   `yaml:"scale" json:"scale"`
	Grid     snap.Config    `yaml:"grid" json:"grid"`
	Drag     DragConfig     `yaml:"drag" json:"drag"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Waveform WaveformConfig `yaml:"waveform" json:"waveform"`
	Viewport ViewportConfig `yaml:"viewport" json:"viewport"`
}

// DragConfig controls pointer move coalescing.
type DragConfig struct {
	Throttle      bool          `yaml:"throttle" json:"throttle"`
	FrameInterval time.Duration `yaml:"frame_interval" json:"frame_interval"`
}

// HistoryConfig bounds the undo log.
type HistoryConfig struct {
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// CacheConfig bounds the waveform cache.
type CacheConfig struct {
	MaxBytes           int64 `yaml:"max_bytes" json:"max_bytes"`
	MaxItems           int   `yaml:"max_items" json:"max_items"`
	FingerprintSamples int   `yaml:"fingerprint_samples" json:"fingerprint_samples"`
}

// WaveformConfig is the default waveform look.
type WaveformConfig struct {
	Color     string         `yaml:"color" json:"color"`
	Style     waveform.Style `yaml:"style" json:"style"`
	ShowBeats bool           `yaml:"show_beats" json:"show_beats"`
}

// ViewportConfig is the initial surface geometry and virtualization
// buffers.
type ViewportConfig struct {
	Width         float64 `yaml:"width" json:"width"`
	Height        float64 `yaml:"height" json:"height"`
	TrackHeight   float64 `yaml:"track_height" json:"track_height"`
	BufferTracks  int     `yaml:"buffer_tracks" json:"buffer_tracks"`
	BufferSeconds float64 `yaml:"buffer_seconds" json:"buffer_seconds"`
	ChunkSeconds  float64 `yaml:"chunk_seconds" json:"chunk_seconds"`
}

// Defaults returns a valid configuration.
func Defaults() Config {
	return Config{
		Scale: scale.DefaultConfig(),
		Grid:  snap.DefaultConfig(),
		Drag: DragConfig{
			Throttle:      true,
			FrameInterval: drag.DefaultFrameInterval,
		},
		History: HistoryConfig{MaxSize: history.DefaultMaxSize},
		Cache: CacheConfig{
			MaxBytes:           waveform.DefaultMaxBytes,
			MaxItems:           waveform.DefaultMaxItems,
			FingerprintSamples: waveform.DefaultFingerprintSamples,
		},
		Waveform: WaveformConfig{
			Color:     "#4ade80",
			Style:     waveform.StyleBars,
			ShowBeats: true,
		},
		Viewport: ViewportConfig{
			Width:         1280,
			Height:        480,
			TrackHeight:   60,
			BufferTracks:  2,
			BufferSeconds: 2,
			ChunkSeconds:  10,
		},
	}
}
