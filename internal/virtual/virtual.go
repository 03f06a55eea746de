// Package virtual computes which tracks and which slice of time a viewport
// needs rendered.
//
// Everything here is a pure function of the viewport; nothing is cached.
package virtual

import (
	"math"

	"github.com/lilseedabe/flickmv/internal/timeline"
)

// Viewport is the scroll/zoom geometry of the timeline surface.
type Viewport struct {
	ScrollTop  float64 // px
	ScrollLeft float64 // px
	Width      float64 // px
	Height     float64 // px

	PixelsPerSecond float64
	Duration        float64 // s

	TotalTracks int
	TrackHeight float64 // px

	BufferTracks  int
	BufferSeconds float64
	ChunkSeconds  float64
}

// TrackRange is the inclusive range of tracks to render. EndIndex is -1
// when there are none.
type TrackRange struct {
	StartIndex int
	EndIndex   int
	Offset     float64 // px from the top to StartIndex
}

// TimeRange is the time slice to render. Chunks index fixed ChunkSeconds
// windows and stay stable while scrolling within a chunk.
type TimeRange struct {
	StartTime  float64
	EndTime    float64
	StartChunk int
	EndChunk   int
	Offset     float64 // px from the left to StartTime
}

// Window is the result of Compute.
type Window struct {
	Tracks TrackRange
	Time   TimeRange
}

// Empty reports whether nothing can be visible.
func (w Window) Empty() bool {
	return w.Tracks.EndIndex < w.Tracks.StartIndex || w.Time.EndTime < w.Time.StartTime
}

// Compute derives the render window. Zero tracks, zero duration and
// non-positive scale or track height are handled without dividing by zero.
func Compute(v Viewport) Window {
	return Window{
		Tracks: trackRange(v),
		Time:   timeRange(v),
	}
}

func trackRange(v Viewport) TrackRange {
	if v.TotalTracks <= 0 || v.TrackHeight <= 0 {
		return TrackRange{StartIndex: 0, EndIndex: -1}
	}
	first := int(math.Floor(v.ScrollTop/v.TrackHeight)) - v.BufferTracks
	// Last track whose top edge is above the bottom of the viewport.
	last := int(math.Ceil((v.ScrollTop+v.Height)/v.TrackHeight)) - 1 + v.BufferTracks

	start := max(0, first)
	end := min(v.TotalTracks-1, last)
	return TrackRange{
		StartIndex: start,
		EndIndex:   end,
		Offset:     float64(start) * v.TrackHeight,
	}
}

func timeRange(v Viewport) TimeRange {
	if v.PixelsPerSecond <= 0 {
		return TimeRange{StartTime: 0, EndTime: -1, EndChunk: -1}
	}
	viewStart := v.ScrollLeft / v.PixelsPerSecond
	visible := v.Width / v.PixelsPerSecond

	start := math.Max(0, viewStart-v.BufferSeconds)
	end := math.Min(v.Duration, viewStart+visible+v.BufferSeconds)

	r := TimeRange{
		StartTime: start,
		EndTime:   end,
		Offset:    start * v.PixelsPerSecond,
	}
	if v.ChunkSeconds > 0 && end >= start {
		r.StartChunk = int(math.Floor(start / v.ChunkSeconds))
		r.EndChunk = int(math.Floor(end / v.ChunkSeconds))
	} else if end < start {
		r.EndChunk = -1
	}
	return r
}

// IsVisible reports whether an item on track spanning [start, end]
// intersects the window on both axes.
func (w Window) IsVisible(track int, start, end float64) bool {
	if track < w.Tracks.StartIndex || track > w.Tracks.EndIndex {
		return false
	}
	return start <= w.Time.EndTime && end >= w.Time.StartTime
}

// Contains reports whether it is visible.
func (w Window) Contains(it timeline.Item) bool {
	sp := it.Placement()
	return w.IsVisible(sp.Track, sp.Start, sp.End())
}

// Filter returns the visible items in their original order.
func (w Window) Filter(items []timeline.Item) []timeline.Item {
	var out []timeline.Item
	for _, it := range items {
		if w.Contains(it) {
			out = append(out, it)
		}
	}
	return out
}
