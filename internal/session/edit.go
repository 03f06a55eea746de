package session

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/keymap"
	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// Zoom steps applied by the keyboard.
const (
	zoomInFactor  = 1.25
	zoomOutFactor = 0.8
)

func (s *Session) pointerDown(ev Event) error {
	if ev.Target == "" {
		t := math.Max(0, s.transform.ToTime(s.scrollLeft+ev.Point.X))
		s.SetPlayhead(t)
		return nil
	}
	if _, _, ok := s.project.Find(ev.Target); !ok {
		return fmt.Errorf("pointer down on %q: %w", ev.Target, timeline.ErrItemNotFound)
	}
	s.drag.PointerDown(ev.PointerID, ev.Target, ev.Point)
	return nil
}

// Drag callbacks run under the controller lock; they only touch session
// state and never call back into the controller.

func (s *Session) onDragStart(ds drag.Session) {
	it, _, ok := s.project.Find(ds.Target)
	if !ok {
		return
	}
	sp := it.Placement()
	s.active = &dragState{id: sp.ID, start: sp.Start, track: sp.Track}
	s.selection = sp.ID
	s.snap.SetCustomPoints(append(s.project.SnapPoints(sp.ID), s.playhead))
	s.emit(Output{Type: OutputDragStart, Item: sp.ID, Time: sp.Start, Track: sp.Track})
}

func (s *Session) onDragMove(ds drag.Session) {
	res, track, ok := s.dragTo(ds)
	if !ok {
		return
	}
	s.emit(Output{
		Type:    OutputDragMove,
		Item:    s.active.id,
		Time:    res.Time,
		Track:   track,
		Snapped: res.Snapped,
		Kind:    res.Kind.String(),
	})
}

func (s *Session) onDragEnd(ds drag.Session) {
	res, track, ok := s.dragTo(ds)
	if !ok {
		return
	}
	st := s.active
	s.active = nil
	s.emit(Output{
		Type:    OutputDragEnd,
		Item:    st.id,
		Time:    res.Time,
		Track:   track,
		Snapped: res.Snapped,
		Kind:    res.Kind.String(),
	})
	// One entry per gesture; an unchanged position records nothing.
	s.history.Execute(timeline.ActionMove, fmt.Sprintf("move %s to %.3fs", st.id, res.Time), s.project)
}

// dragTo moves the dragged item to its snapped position in the working
// copy.
func (s *Session) dragTo(ds drag.Session) (snap.Result, int, bool) {
	st := s.active
	if st == nil {
		return snap.Result{}, 0, false
	}
	raw := st.start + s.transform.ToTime(ds.Delta.X)
	track := st.track
	if h := s.cfg.Viewport.TrackHeight; h > 0 {
		track += int(math.Round(ds.Delta.Y / h))
	}
	res := s.snap.Resolve(raw, snap.View{
		Duration:        s.project.Duration,
		PixelsPerSecond: s.transform.PixelsPerSecond(),
	})
	next, err := s.project.Move(st.id, res.Time, track)
	if err != nil {
		s.logger.Warn("drag target vanished", "item", st.id, "error", err)
		return res, track, false
	}
	s.project = next
	it, _, _ := next.Find(st.id)
	return res, it.Placement().Track, true
}

// ApplyEdit applies e to the project and records it. An active drag is
// committed first.
func (s *Session) ApplyEdit(e Edit) error {
	s.drag.Cancel()

	var (
		next timeline.Project
		err  error
		desc string
	)
	switch e.Action {
	case timeline.ActionMove:
		next, err = s.project.Move(e.ID, e.Start, e.Track)
		desc = fmt.Sprintf("move %s to %.3fs", e.ID, e.Start)
	case timeline.ActionTrim:
		next, err = s.project.Trim(e.ID, e.Start, e.Duration)
		desc = fmt.Sprintf("trim %s", e.ID)
	case timeline.ActionAdd:
		if e.Item == nil {
			err = fmt.Errorf("add: %w: missing item", timeline.ErrInvalidEdit)
			break
		}
		var it timeline.Item
		if it, err = e.Item.Item(); err == nil {
			next, err = s.project.Add(it)
			desc = "add " + timeline.Describe(it)
		}
	case timeline.ActionRemove:
		next, err = s.project.Remove(e.ID)
		desc = fmt.Sprintf("remove %s", e.ID)
		if err == nil && s.selection == e.ID {
			s.selection = ""
		}
	case timeline.ActionSplit:
		newID := e.NewID
		if newID == "" {
			newID = s.splitID(e.ID)
		}
		next, err = s.project.Split(e.ID, e.At, newID)
		desc = fmt.Sprintf("split %s at %.3fs", e.ID, e.At)
	case timeline.ActionMarker:
		next = s.project.AddMarker(e.At)
		desc = fmt.Sprintf("marker at %.3fs", e.At)
	case timeline.ActionImport:
		if e.Project == nil {
			err = fmt.Errorf("import: %w: missing project", timeline.ErrInvalidEdit)
			break
		}
		if err = e.Project.Validate(); err == nil {
			next = e.Project.Clone()
			next.Duration = max(next.Duration, next.End())
			desc = fmt.Sprintf("import %s", e.Project.Name)
		}
	default:
		err = fmt.Errorf("%w: unknown action %q", timeline.ErrInvalidEdit, e.Action)
	}

	if err != nil {
		s.emit(Output{Type: OutputRejected, Item: e.ID, Action: e.Action, Detail: err.Error()})
		return err
	}
	s.project = next
	s.history.Execute(e.Action, desc, next)
	return nil
}

func (s *Session) splitID(id string) string {
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s.%d", id, n)
		if _, _, exists := s.project.Find(cand); !exists {
			return cand
		}
	}
}

// Undo commits any active drag, then undoes the latest entry.
func (s *Session) Undo() bool {
	s.drag.Cancel()
	return s.history.Undo()
}

// Redo reapplies the next entry.
func (s *Session) Redo() bool {
	s.drag.Cancel()
	return s.history.Redo()
}

// applyState receives undo/redo states from history.
func (s *Session) applyState(p timeline.Project) {
	s.project = p
	if s.selection != "" {
		if _, _, ok := p.Find(s.selection); !ok {
			s.selection = ""
		}
	}
}

func (s *Session) observeHistory(ev history.Event[timeline.Project]) {
	s.pending = append(s.pending, ev)
	s.emit(Output{
		Type:   OutputHistory,
		Action: ev.Entry.Kind,
		Kind:   ev.Op.String(),
		Detail: ev.Entry.Description,
		Track:  ev.Cursor,
	})
}

// flushHistory hands recorded transitions to the recorder in order.
func (s *Session) flushHistory(ctx context.Context) error {
	evs := s.pending
	s.pending = nil
	if s.recorder == nil {
		return nil
	}
	var errs []error
	for _, ev := range evs {
		if err := s.recorder.Record(ctx, s.id, ev); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", ev.Op, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) key(k keymap.Key) error {
	cmd, ok := s.keys.Lookup(k)
	if !ok {
		s.logger.Debug("unbound key", "chord", k.Chord())
		return nil
	}
	switch cmd {
	case keymap.CommandUndo:
		s.Undo()
	case keymap.CommandRedo:
		s.Redo()
	case keymap.CommandRemove:
		if s.selection == "" {
			return nil
		}
		return s.ApplyEdit(Edit{Action: timeline.ActionRemove, ID: s.selection})
	case keymap.CommandSplit:
		if s.selection == "" {
			return nil
		}
		return s.ApplyEdit(Edit{Action: timeline.ActionSplit, ID: s.selection, At: s.playhead})
	case keymap.CommandAddMarker:
		return s.ApplyEdit(Edit{Action: timeline.ActionMarker, At: s.playhead})
	case keymap.CommandZoomIn:
		s.Zoom(zoomInFactor)
	case keymap.CommandZoomOut:
		s.Zoom(zoomOutFactor)
	case keymap.CommandCancelDrag:
		s.drag.Cancel()
	}
	return nil
}
