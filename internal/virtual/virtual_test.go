package virtual

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lilseedabe/flickmv/internal/timeline"
)

func TestComputeBasic(t *testing.T) {
	w := Compute(Viewport{
		ScrollTop: 130, Height: 200, TrackHeight: 60, TotalTracks: 20, BufferTracks: 2,
		ScrollLeft: 1000, Width: 800, PixelsPerSecond: 100, Duration: 60, BufferSeconds: 2, ChunkSeconds: 10,
	})

	// Rows 2..5 intersect [130, 330]; two rows of buffer each side.
	assert.Equal(t, TrackRange{StartIndex: 0, EndIndex: 7, Offset: 0}, w.Tracks)
	assert.Equal(t, TimeRange{StartTime: 8, EndTime: 20, StartChunk: 0, EndChunk: 2, Offset: 800}, w.Time)
}

func TestTrackRangeEndIsInclusive(t *testing.T) {
	// A 120px viewport over 60px rows shows rows 0 and 1 exactly; row 2
	// starts at the bottom edge and is not rendered.
	w := Compute(Viewport{Height: 120, TrackHeight: 60, TotalTracks: 10, Width: 100, PixelsPerSecond: 100, Duration: 10})
	assert.Equal(t, 0, w.Tracks.StartIndex)
	assert.Equal(t, 1, w.Tracks.EndIndex)

	// One pixel more exposes row 2.
	w = Compute(Viewport{Height: 121, TrackHeight: 60, TotalTracks: 10, Width: 100, PixelsPerSecond: 100, Duration: 10})
	assert.Equal(t, 2, w.Tracks.EndIndex)

	w = Compute(Viewport{Height: 120, TrackHeight: 60, TotalTracks: 10, BufferTracks: 2, Width: 100, PixelsPerSecond: 100, Duration: 10})
	assert.Equal(t, 3, w.Tracks.EndIndex)
}

func TestComputeClampsToDuration(t *testing.T) {
	w := Compute(Viewport{
		ScrollLeft: 5000, Width: 1000, PixelsPerSecond: 100, Duration: 55,
		TotalTracks: 1, TrackHeight: 60, Height: 60,
	})
	assert.Equal(t, 50.0, w.Time.StartTime)
	assert.Equal(t, 55.0, w.Time.EndTime)
	assert.True(t, w.IsVisible(0, 54, 70))
	assert.False(t, w.IsVisible(0, 40, 49))
}

func TestComputeDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		v    Viewport
	}{
		{"no tracks", Viewport{TotalTracks: 0, TrackHeight: 60, Height: 100, PixelsPerSecond: 100, Width: 100, Duration: 10}},
		{"zero track height", Viewport{TotalTracks: 3, TrackHeight: 0, Height: 100, PixelsPerSecond: 100, Width: 100, Duration: 10}},
		{"zero scale", Viewport{TotalTracks: 3, TrackHeight: 60, Height: 100, PixelsPerSecond: 0, Width: 100, Duration: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Compute(tt.v)
			assert.True(t, w.Empty())
			assert.False(t, w.IsVisible(0, 0, 1))
		})
	}

	w := Compute(Viewport{TotalTracks: 1, TrackHeight: 60, Height: 60, PixelsPerSecond: 100, Width: 100, Duration: 0, ChunkSeconds: 10})
	assert.False(t, w.Empty())
	assert.Equal(t, 0.0, w.Time.EndTime)
	assert.True(t, w.IsVisible(0, 0, 0))
}

func TestVisibilityRequiresBothAxes(t *testing.T) {
	w := Compute(Viewport{
		ScrollTop: 0, Height: 120, TrackHeight: 60, TotalTracks: 10,
		ScrollLeft: 0, Width: 1000, PixelsPerSecond: 100, Duration: 100,
	})
	assert.True(t, w.IsVisible(1, 2, 3))
	assert.False(t, w.IsVisible(5, 2, 3), "time matches, track does not")
	assert.False(t, w.IsVisible(1, 20, 30), "track matches, time does not")
}

func TestFilter(t *testing.T) {
	items := []timeline.Item{
		timeline.Clip{Span: timeline.Span{ID: "in", Track: 0, Start: 1, Duration: 2}},
		timeline.Clip{Span: timeline.Span{ID: "late", Track: 0, Start: 50, Duration: 2}},
		timeline.AudioTrack{Span: timeline.Span{ID: "low", Track: 9, Start: 0, Duration: 60}},
		timeline.Transition{Span: timeline.Span{ID: "edge", Track: 1, Start: 9.5, Duration: 1}},
	}
	w := Compute(Viewport{
		Height: 120, TrackHeight: 60, TotalTracks: 10,
		Width: 1000, PixelsPerSecond: 100, Duration: 60,
	})
	var ids []string
	for _, it := range w.Filter(items) {
		ids = append(ids, it.Placement().ID)
	}
	assert.Equal(t, []string{"in", "edge"}, ids)
}

// With zero buffers the window is exact: an item is visible iff it
// intersects the viewport on both axes.
func TestVisibilityCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 300; round++ {
		v := Viewport{
			ScrollTop:       rng.Float64() * 2000,
			Height:          50 + rng.Float64()*800,
			TrackHeight:     20 + float64(rng.Intn(80)),
			TotalTracks:     rng.Intn(40),
			ScrollLeft:      rng.Float64() * 20000,
			Width:           100 + rng.Float64()*1500,
			PixelsPerSecond: 10 + rng.Float64()*990,
			Duration:        rng.Float64() * 300,
		}
		w := Compute(v)

		viewStart := v.ScrollLeft / v.PixelsPerSecond
		viewEnd := math.Min(v.Duration, viewStart+v.Width/v.PixelsPerSecond)
		viewStart = math.Max(0, viewStart)

		for i := 0; i < 50; i++ {
			track := rng.Intn(max(v.TotalTracks, 1) + 5)
			start := rng.Float64() * v.Duration
			end := math.Min(v.Duration, start+rng.Float64()*30)

			top := float64(track) * v.TrackHeight
			trackHit := track < v.TotalTracks &&
				top < v.ScrollTop+v.Height && top+v.TrackHeight > v.ScrollTop
			timeHit := start <= viewEnd && end >= viewStart

			assert.Equal(t, trackHit && timeHit, w.IsVisible(track, start, end),
				fmt.Sprintf("round=%d track=%d [%v,%v] window=%+v", round, track, start, end, w))
		}
	}
}

func TestBuffersWidenWindow(t *testing.T) {
	base := Viewport{
		ScrollTop: 600, Height: 120, TrackHeight: 60, TotalTracks: 30,
		ScrollLeft: 2000, Width: 500, PixelsPerSecond: 100, Duration: 100,
	}
	buffered := base
	buffered.BufferTracks = 2
	buffered.BufferSeconds = 3

	a, b := Compute(base), Compute(buffered)
	assert.Equal(t, a.Tracks.StartIndex-2, b.Tracks.StartIndex)
	assert.Equal(t, a.Tracks.EndIndex+2, b.Tracks.EndIndex)
	assert.Equal(t, a.Time.StartTime-3, b.Time.StartTime)
	assert.Equal(t, a.Time.EndTime+3, b.Time.EndTime)
}
