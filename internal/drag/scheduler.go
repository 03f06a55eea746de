package drag

import (
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// DefaultFrameInterval approximates one 60Hz display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameID identifies a requested frame callback. Zero means none.
type FrameID uint64

// FrameScheduler runs a callback on the next frame.
type FrameScheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// ClockScheduler schedules frames on a clock one interval in the future.
type ClockScheduler struct {
	clock    clock.WithDelayedExecution
	interval time.Duration
	dispatch func(func())

	mu     sync.Mutex
	next   FrameID
	timers map[FrameID]clock.Timer
}

// ClockOption configures a ClockScheduler.
type ClockOption func(*ClockScheduler)

// WithDispatch routes fired frames through fn instead of running them on
// the timer goroutine. Sessions use it to marshal frames onto their loop.
func WithDispatch(fn func(func())) ClockOption {
	return func(s *ClockScheduler) {
		s.dispatch = fn
	}
}

// NewClockScheduler returns a scheduler firing interval after each request.
// A non-positive interval selects DefaultFrameInterval.
func NewClockScheduler(c clock.WithDelayedExecution, interval time.Duration, opts ...ClockOption) *ClockScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	s := &ClockScheduler{
		clock:    c,
		interval: interval,
		timers:   make(map[FrameID]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestFrame schedules fn. Safe for concurrent use.
func (s *ClockScheduler) RequestFrame(fn func()) FrameID {
	s.mu.Lock()
	s.next++
	id := s.next
	s.timers[id] = nil // reserved until the timer exists
	s.mu.Unlock()

	t := s.clock.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if !live {
			return
		}
		if s.dispatch != nil {
			s.dispatch(fn)
			return
		}
		fn()
	})

	s.mu.Lock()
	if _, live := s.timers[id]; live {
		s.timers[id] = t
	}
	s.mu.Unlock()
	return id
}

// CancelFrame stops a pending frame. Unknown or fired IDs are ignored.
func (s *ClockScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	t, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok && t != nil {
		t.Stop()
	}
}

// Pending returns the number of frames not yet fired or cancelled.
func (s *ClockScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler queues frames until Flush is called.
type ManualScheduler struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func()
}

// NewManualScheduler returns an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[FrameID]func())}
}

// RequestFrame queues fn for the next Flush.
func (s *ManualScheduler) RequestFrame(fn func()) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	return s.next
}

// CancelFrame drops a queued frame.
func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Flush runs every queued frame in request order and returns how many ran.
// Frames requested by a running frame wait for the next Flush.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	ids := make([]FrameID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.pending[id])
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of queued frames.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
