package harness

import (
	"errors"
	"fmt"

	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/keymap"
	"github.com/lilseedabe/flickmv/internal/session"
)

// OutputSnap is the output type recorded for snap steps.
const OutputSnap = "snap"

// ErrFrameStep is returned by Event for frame steps, which have no event
// form: frames come from the session's scheduler.
var ErrFrameStep = errors.New("frame steps have no event form")

// Validate checks that exactly one action is set and that it is well formed.
func (s *Step) Validate() error {
	if s.Name() == "" {
		return fmt.Errorf("exactly one action is required")
	}
	if s.Key != "" {
		if _, err := keymap.ParseChord(s.Key); err != nil {
			return err
		}
	}
	if s.Edit != nil && s.Edit.Action == "" {
		return fmt.Errorf("edit: action is required")
	}
	if s.Zoom < 0 {
		return fmt.Errorf("zoom factor must be positive")
	}
	return nil
}

// Event converts the step into a session event. Input steps map to their
// event type; view steps (snap, zoom, scroll) become tasks run on the
// session goroutine. Snap results are passed to emit.
func (s *Step) Event(sess *session.Session, emit func(session.Output)) (session.Event, error) {
	pointer := func(typ session.EventType, p *PointerStep) session.Event {
		return session.Event{
			Type:      typ,
			PointerID: p.Pointer,
			Target:    p.Target,
			Point:     drag.Point{X: p.X, Y: p.Y},
		}
	}
	task := func(fn func()) session.Event {
		return session.Event{Type: session.EventTask, Task: fn}
	}

	switch {
	case s.PointerDown != nil:
		return pointer(session.EventPointerDown, s.PointerDown), nil
	case s.PointerMove != nil:
		return pointer(session.EventPointerMove, s.PointerMove), nil
	case s.PointerUp != nil:
		return pointer(session.EventPointerUp, s.PointerUp), nil
	case s.PointerCancel != nil:
		return pointer(session.EventPointerCancel, s.PointerCancel), nil
	case s.Frame:
		return session.Event{}, ErrFrameStep
	case s.Key != "":
		k, err := keymap.ParseChord(s.Key)
		if err != nil {
			return session.Event{}, err
		}
		return session.Event{Type: session.EventKey, Key: k}, nil
	case s.Undo:
		return session.Event{Type: session.EventUndo}, nil
	case s.Redo:
		return session.Event{Type: session.EventRedo}, nil
	case s.Edit != nil:
		e := s.Edit
		return session.Event{Type: session.EventEdit, Edit: &session.Edit{
			Action:   e.Action,
			ID:       e.ID,
			Start:    e.Start,
			Duration: e.Duration,
			Track:    e.Track,
			At:       e.At,
			NewID:    e.NewID,
			Item:     e.Item,
		}}, nil
	case s.Snap != nil:
		t := *s.Snap
		return task(func() {
			res := sess.Snap(t)
			emit(session.Output{Type: OutputSnap, Time: res.Time, Snapped: res.Snapped, Kind: res.Kind.String()})
		}), nil
	case s.Zoom != 0:
		factor := s.Zoom
		return task(func() { sess.Zoom(factor) }), nil
	case s.Scroll != nil:
		left, top := s.Scroll.Left, s.Scroll.Top
		return task(func() { sess.Scroll(left, top) }), nil
	}
	return session.Event{}, fmt.Errorf("step has no action")
}
