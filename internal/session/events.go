package session

import (
	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/keymap"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// EventType distinguishes session inputs.
type EventType int

const (
	EventPointerDown EventType = iota + 1
	EventPointerMove
	EventPointerUp
	EventPointerCancel
	EventKey
	EventEdit
	EventUndo
	EventRedo
	// EventTask runs deferred work (drag frames, cache cleanup) on the
	// session goroutine.
	EventTask
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventPointerDown:
		return "pointer_down"
	case EventPointerMove:
		return "pointer_move"
	case EventPointerUp:
		return "pointer_up"
	case EventPointerCancel:
		return "pointer_cancel"
	case EventKey:
		return "key"
	case EventEdit:
		return "edit"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	case EventTask:
		return "task"
	default:
		return "unknown"
	}
}

// Event is one input to a session.
type Event struct {
	Type EventType

	// Pointer events. Target is the item ID under the pointer; empty
	// means the ruler, which moves the playhead.
	PointerID int
	Target    string
	Point     drag.Point

	Key  keymap.Key
	Edit *Edit
	Task func()
}

// Edit is a programmatic change to the project.
type Edit struct {
	Action   timeline.ActionKind
	ID       string
	Start    float64
	Duration float64
	Track    int
	At       float64
	NewID    string
	Item     *timeline.Record
	Project  *timeline.Project // for ActionImport
}

// Output types emitted by a session.
const (
	OutputDragStart = "drag_start"
	OutputDragMove  = "drag_move"
	OutputDragEnd   = "drag_end"
	OutputHistory   = "history"
	OutputPlayhead  = "playhead"
	OutputZoom      = "zoom"
	OutputRejected  = "rejected"
	OutputSelect    = "select"
)

// Output is an observable effect of processing an event.
type Output struct {
	Type    string
	Item    string
	Action  string
	Time    float64
	Track   int
	Snapped bool
	Kind    string
	Detail  string
}
