package session

import (
	"fmt"
	"image"
	"sort"

	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/scale"
	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/timeline"
	"github.com/lilseedabe/flickmv/internal/virtual"
	"github.com/lilseedabe/flickmv/internal/waveform"
)

// SampleSource resolves an audio source name to mono PCM samples.
type SampleSource interface {
	Samples(source string) ([]float32, error)
}

// MapSource is an in-memory SampleSource.
type MapSource map[string][]float32

// Samples implements SampleSource.
func (m MapSource) Samples(source string) ([]float32, error) {
	s, ok := m[source]
	if !ok {
		return nil, fmt.Errorf("no samples for source %q", source)
	}
	return s, nil
}

// Project returns the working project.
func (s *Session) Project() timeline.Project { return s.project.Clone() }

// Playhead returns the playhead time in seconds.
func (s *Session) Playhead() float64 { return s.playhead }

// SetPlayhead moves the playhead, clamped to the project.
func (s *Session) SetPlayhead(t float64) {
	t = scale.Clamp(t, 0, s.project.Duration)
	if t == s.playhead {
		return
	}
	s.playhead = t
	s.emit(Output{Type: OutputPlayhead, Time: t})
}

// Selection returns the selected item ID, if any.
func (s *Session) Selection() string { return s.selection }

// Select selects id. An empty id clears the selection.
func (s *Session) Select(id string) error {
	if id != "" {
		if _, _, ok := s.project.Find(id); !ok {
			return fmt.Errorf("select %q: %w", id, timeline.ErrItemNotFound)
		}
	}
	s.selection = id
	s.emit(Output{Type: OutputSelect, Item: id})
	return nil
}

// Transform returns the current time/pixel transform.
func (s *Session) Transform() scale.Transform { return s.transform }

// Zoom scales the zoom by factor, keeping the time at the viewport centre
// in place.
func (s *Session) Zoom(factor float64) {
	next, scroll := s.transform.ZoomAt(factor, s.width/2, s.scrollLeft)
	if next.PixelsPerSecond() == s.transform.PixelsPerSecond() {
		return
	}
	s.transform = next
	s.scrollLeft = scroll
	s.emit(Output{Type: OutputZoom, Time: next.PixelsPerSecond(), Detail: fmt.Sprintf("%.4g", next.Zoom())})
}

// Scroll sets the scroll offsets in pixels. Negative values clamp to 0.
func (s *Session) Scroll(left, top float64) {
	s.scrollLeft = max(0, left)
	s.scrollTop = max(0, top)
}

// SetSize sets the viewport size in pixels.
func (s *Session) SetSize(width, height float64) {
	s.width = max(0, width)
	s.height = max(0, height)
}

// Viewport returns the virtualization input for the current view.
func (s *Session) Viewport() virtual.Viewport {
	vp := s.cfg.Viewport
	return virtual.Viewport{
		ScrollTop:       s.scrollTop,
		ScrollLeft:      s.scrollLeft,
		Width:           s.width,
		Height:          s.height,
		PixelsPerSecond: s.transform.PixelsPerSecond(),
		Duration:        s.project.Duration,
		TotalTracks:     s.project.Tracks,
		TrackHeight:     vp.TrackHeight,
		BufferTracks:    vp.BufferTracks,
		BufferSeconds:   vp.BufferSeconds,
		ChunkSeconds:    vp.ChunkSeconds,
	}
}

// Window returns the render window for the current view.
func (s *Session) Window() virtual.Window {
	return virtual.Compute(s.Viewport())
}

// Visible returns the items inside the render window.
func (s *Session) Visible() []timeline.Item {
	return s.Window().Filter(s.project.Items)
}

// Waveform renders the waveform of an audio item at w x h pixels through
// the cache. Beat times are shifted into the item's own time base.
func (s *Session) Waveform(id string, w, h int) (*image.RGBA, error) {
	it, _, ok := s.project.Find(id)
	if !ok {
		return nil, fmt.Errorf("waveform %q: %w", id, timeline.ErrItemNotFound)
	}
	audio, ok := it.(timeline.AudioTrack)
	if !ok {
		return nil, fmt.Errorf("waveform %q: item is a %s, not audio", id, it.Kind())
	}
	if s.samples == nil {
		return nil, fmt.Errorf("waveform %q: no sample source", id)
	}
	samples, err := s.samples.Samples(audio.Source)
	if err != nil {
		return nil, fmt.Errorf("waveform %q: %w", id, err)
	}

	cfg := waveform.RenderConfig{
		Width:     w,
		Height:    h,
		Color:     s.cfg.Waveform.Color,
		Style:     s.cfg.Waveform.Style,
		ShowBeats: s.cfg.Waveform.ShowBeats,
		Samples:   samples,
		Duration:  audio.Duration,
	}
	if a := s.snap.Analysis(); a != nil && cfg.ShowBeats {
		for _, b := range a.BeatTimes {
			if rel := b - audio.Start; rel >= 0 && rel <= audio.Duration {
				cfg.BeatTimes = append(cfg.BeatTimes, rel)
			}
		}
		sort.Float64s(cfg.BeatTimes)
	}
	return s.cache.Get(cfg)
}

// SetAnalysis replaces the beat analysis. Cached waveforms carry the old
// beat overlay, so the cache is purged.
func (s *Session) SetAnalysis(a *snap.Analysis) error {
	if err := s.snap.SetAnalysis(a); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// UpdateGrid replaces the snap configuration.
func (s *Session) UpdateGrid(cfg snap.Config) error {
	if err := s.snap.UpdateConfig(cfg); err != nil {
		return err
	}
	s.cfg.Grid = cfg
	return nil
}

// Snap resolves t against the grid at the current zoom. Custom points set
// up for a drag are ignored and stay in effect for that drag.
func (s *Session) Snap(t float64) snap.Result {
	return s.snap.ResolveGrid(t, snap.View{
		Duration:        s.project.Duration,
		PixelsPerSecond: s.transform.PixelsPerSecond(),
	})
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// History returns the recorded entries, oldest first.
func (s *Session) History() []history.Entry[timeline.Project] { return s.history.Entries() }

// HistoryCursor returns the index of the current entry, -1 at the start.
func (s *Session) HistoryCursor() int { return s.history.Cursor() }

// CacheStats returns waveform cache counters.
func (s *Session) CacheStats() waveform.Stats { return s.cache.Stats() }

// DragActive reports whether a gesture is in progress.
func (s *Session) DragActive() bool { return s.active != nil }
