// Package scale maps timeline time to pixels under a zoom-bounded rate.
//
// A Transform is an immutable value: zooming returns a new Transform, so
// it is safe to share between goroutines without synchronization.
package scale

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Default rates used when a zero Config is supplied.
const (
	DefaultBasePixelsPerSecond = 100.0
	DefaultMinPixelsPerSecond  = 10.0
	DefaultMaxPixelsPerSecond  = 1000.0
)

// Config bounds the pixels-per-second rate.
type Config struct {
	BasePixelsPerSecond float64 `json:"base_pixels_per_second" yaml:"base_pixels_per_second"`
	MinPixelsPerSecond  float64 `json:"min_pixels_per_second" yaml:"min_pixels_per_second"`
	MaxPixelsPerSecond  float64 `json:"max_pixels_per_second" yaml:"max_pixels_per_second"`
}

// DefaultConfig returns the default rate bounds.
func DefaultConfig() Config {
	return Config{
		BasePixelsPerSecond: DefaultBasePixelsPerSecond,
		MinPixelsPerSecond:  DefaultMinPixelsPerSecond,
		MaxPixelsPerSecond:  DefaultMaxPixelsPerSecond,
	}
}

// Validate reports whether the bounds are usable.
func (c Config) Validate() error {
	if !(c.MinPixelsPerSecond > 0) {
		return fmt.Errorf("min_pixels_per_second must be > 0, got %v", c.MinPixelsPerSecond)
	}
	if !(c.MaxPixelsPerSecond >= c.MinPixelsPerSecond) {
		return fmt.Errorf("max_pixels_per_second (%v) must be >= min_pixels_per_second (%v)",
			c.MaxPixelsPerSecond, c.MinPixelsPerSecond)
	}
	if !(c.BasePixelsPerSecond > 0) || math.IsInf(c.BasePixelsPerSecond, 0) {
		return fmt.Errorf("base_pixels_per_second must be a positive finite number, got %v", c.BasePixelsPerSecond)
	}
	return nil
}

// Transform converts between seconds and pixels.
type Transform struct {
	cfg  Config
	zoom float64
	pps  float64
}

// New creates a Transform at the given zoom.
func New(cfg Config, zoom float64) (Transform, error) {
	if err := cfg.Validate(); err != nil {
		return Transform{}, err
	}
	if !(zoom > 0) || math.IsInf(zoom, 0) {
		return Transform{}, fmt.Errorf("zoom must be a positive finite number, got %v", zoom)
	}
	return Transform{cfg: cfg}.WithZoom(zoom), nil
}

// Config returns the rate bounds.
func (t Transform) Config() Config { return t.cfg }

// Zoom returns the effective zoom. Requests beyond the rate band are
// clamped so that zooming back out takes effect immediately.
func (t Transform) Zoom() float64 { return t.zoom }

// PixelsPerSecond returns clamp(base*zoom, min, max).
func (t Transform) PixelsPerSecond() float64 { return t.pps }

// WithZoom returns a copy of t at zoom z. Non-positive or non-finite
// values leave the transform unchanged.
func (t Transform) WithZoom(z float64) Transform {
	if !(z > 0) || math.IsInf(z, 0) {
		return t
	}
	pps := Clamp(t.cfg.BasePixelsPerSecond*z, t.cfg.MinPixelsPerSecond, t.cfg.MaxPixelsPerSecond)
	t.pps = pps
	t.zoom = pps / t.cfg.BasePixelsPerSecond
	return t
}

// ToPixel converts seconds to pixels.
func (t Transform) ToPixel(seconds float64) float64 {
	return seconds * t.pps
}

// ToTime converts pixels to seconds.
func (t Transform) ToTime(px float64) float64 {
	if t.pps == 0 {
		return 0
	}
	return px / t.pps
}

// VisibleDuration returns how many seconds fit in widthPx.
func (t Transform) VisibleDuration(widthPx float64) float64 {
	return t.ToTime(math.Max(0, widthPx))
}

// ZoomAt multiplies the zoom by factor while keeping the time under
// anchorPx (a viewport-relative pixel) fixed. It returns the new transform
// and the scroll offset that preserves the anchor.
func (t Transform) ZoomAt(factor, anchorPx, scrollLeft float64) (Transform, float64) {
	anchorTime := t.ToTime(scrollLeft + anchorPx)
	next := t.WithZoom(t.zoom * factor)
	newScroll := next.ToPixel(anchorTime) - anchorPx
	return next, math.Max(0, newScroll)
}

// Clamp limits v to [lo, hi]. The bounds are swapped if given out of order.
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
