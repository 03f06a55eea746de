package drag

import (
	"log/slog"
	"sync"

	"k8s.io/utils/clock"
)

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateActive
)

// String returns the state name.
func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Point is a position in surface pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Session describes one drag gesture.
type Session struct {
	PointerID int
	Target    string
	Start     Point
	Current   Point
	Delta     Point
	Active    bool
}

// Callbacks receive the gesture stream. Nil callbacks are skipped.
// Callbacks run with the controller locked and must not call back into it.
type Callbacks struct {
	OnStart func(Session)
	OnMove  func(Session)
	OnEnd   func(Session)
}

// PointerCapturer routes all events of a pointer to the dragged surface.
type PointerCapturer interface {
	Capture(pointerID int)
	Release(pointerID int)
}

// Stats counts controller activity.
type Stats struct {
	Starts  int
	Moves   int
	Ends    int
	Ignored int
}

// Controller is the drag state machine.
type Controller struct {
	mu        sync.Mutex
	cb        Callbacks
	throttle  bool
	scheduler FrameScheduler
	capturer  PointerCapturer
	logger    *slog.Logger

	session    Session
	pending    FrameID
	pendingGen uint64
	gen        uint64
	stats      Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithThrottle enables or disables per-frame coalescing of moves.
func WithThrottle(enabled bool) Option {
	return func(c *Controller) {
		c.throttle = enabled
	}
}

// WithScheduler sets the frame source used when throttling.
func WithScheduler(s FrameScheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithCapturer sets the pointer capture hook.
func WithCapturer(pc PointerCapturer) Option {
	return func(c *Controller) {
		c.capturer = pc
	}
}

// WithLogger sets the logger for ignored events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates an idle controller. Throttling is on by default
// with a ClockScheduler on the real clock.
func NewController(cb Callbacks, opts ...Option) *Controller {
	c := &Controller{
		cb:       cb,
		throttle: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.throttle && c.scheduler == nil {
		c.scheduler = NewClockScheduler(clock.RealClock{}, DefaultFrameInterval)
	}
	return c
}

// PointerDown starts a session on target. It returns false, and changes
// nothing, when a session is already active.
func (c *Controller) PointerDown(pointerID int, target string, p Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Active {
		c.ignore("pointer down during active drag", pointerID)
		return false
	}
	if c.capturer != nil {
		c.capturer.Capture(pointerID)
	}
	c.session = Session{
		PointerID: pointerID,
		Target:    target,
		Start:     p,
		Current:   p,
		Active:    true,
	}
	c.stats.Starts++
	if c.cb.OnStart != nil {
		c.cb.OnStart(c.session)
	}
	return true
}

// PointerMove records the latest position. With throttling, at most one
// frame is pending and it reports the newest position when it fires.
func (c *Controller) PointerMove(pointerID int, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active || c.session.PointerID != pointerID {
		c.ignore("pointer move outside drag", pointerID)
		return
	}
	c.session.Current = p
	c.session.Delta = p.Sub(c.session.Start)

	if !c.throttle {
		c.emitMoveLocked()
		return
	}
	if c.pending != 0 {
		return
	}
	c.gen++
	gen := c.gen
	c.pendingGen = gen
	c.pending = c.scheduler.RequestFrame(func() { c.frame(gen) })
}

// frame runs a scheduled move. Frames that were cancelled or superseded
// are no-ops.
func (c *Controller) frame(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == 0 || c.pendingGen != gen || !c.session.Active {
		return
	}
	c.pending = 0
	c.emitMoveLocked()
}

// PointerUp ends the session at p.
func (c *Controller) PointerUp(pointerID int, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active || c.session.PointerID != pointerID {
		c.ignore("pointer up outside drag", pointerID)
		return
	}
	c.session.Current = p
	c.session.Delta = p.Sub(c.session.Start)
	c.endLocked()
}

// PointerCancel ends the session at the last known position.
func (c *Controller) PointerCancel(pointerID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active || c.session.PointerID != pointerID {
		c.ignore("pointer cancel outside drag", pointerID)
		return
	}
	c.endLocked()
}

// Cancel ends the active session regardless of pointer. It reports whether
// a session was active.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active {
		return false
	}
	c.endLocked()
	return true
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Active {
		return StateActive
	}
	return StateIdle
}

// Session returns the active session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session.Active
}

// Stats returns activity counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) emitMoveLocked() {
	c.stats.Moves++
	if c.cb.OnMove != nil {
		c.cb.OnMove(c.session)
	}
}

func (c *Controller) endLocked() {
	if c.capturer != nil {
		c.capturer.Release(c.session.PointerID)
	}
	if c.pending != 0 {
		c.scheduler.CancelFrame(c.pending)
		c.pending = 0
	}
	ended := c.session
	ended.Active = false
	c.session = Session{}
	c.stats.Ends++
	if c.cb.OnEnd != nil {
		c.cb.OnEnd(ended)
	}
}

func (c *Controller) ignore(msg string, pointerID int) {
	c.stats.Ignored++
	c.logger.Debug(msg,
		"pointer_id", pointerID,
		"state", c.stateLocked().String(),
	)
}

func (c *Controller) stateLocked() State {
	if c.session.Active {
		return StateActive
	}
	return StateIdle
}
