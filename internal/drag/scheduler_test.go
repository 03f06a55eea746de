package drag

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestClockSchedulerFiresAfterInterval(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	s := NewClockScheduler(fc, 0)

	var fired atomic.Int32
	s.RequestFrame(func() { fired.Add(1) })
	assert.Equal(t, 1, s.Pending())

	fc.Step(DefaultFrameInterval - time.Millisecond)
	assert.Zero(t, fired.Load())

	fc.Step(time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, s.Pending())
}

func TestClockSchedulerCancel(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	s := NewClockScheduler(fc, 10*time.Millisecond)

	var fired atomic.Int32
	id := s.RequestFrame(func() { fired.Add(1) })
	s.CancelFrame(id)
	s.CancelFrame(id)
	assert.Zero(t, s.Pending())
	assert.False(t, fc.HasWaiters())

	fc.Step(time.Second)
	assert.Zero(t, fired.Load())
}

func TestClockSchedulerDispatch(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	var mu sync.Mutex
	var dispatched []func()
	s := NewClockScheduler(fc, time.Millisecond, WithDispatch(func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, fn)
	}))

	var ran atomic.Bool
	s.RequestFrame(func() { ran.Store(true) })
	fc.Step(time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 1
	}, time.Second, time.Millisecond)
	assert.False(t, ran.Load(), "dispatch defers execution to the owner")

	mu.Lock()
	fn := dispatched[0]
	mu.Unlock()
	fn()
	assert.True(t, ran.Load())
}

func TestControllerWithClockScheduler(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	var moves atomic.Int32
	var lastX atomic.Value
	c := NewController(Callbacks{
		OnMove: func(s Session) {
			moves.Add(1)
			lastX.Store(s.Delta.X)
		},
	}, WithScheduler(NewClockScheduler(fc, DefaultFrameInterval)))

	c.PointerDown(7, "clip", Point{})
	c.PointerMove(7, Point{X: 1})
	c.PointerMove(7, Point{X: 2})
	c.PointerMove(7, Point{X: 3})

	fc.Step(DefaultFrameInterval)
	require.Eventually(t, func() bool { return moves.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 3.0, lastX.Load())

	c.PointerMove(7, Point{X: 8})
	c.PointerUp(7, Point{X: 8})
	assert.False(t, fc.HasWaiters(), "pending frame stopped on end")
	fc.Step(DefaultFrameInterval)
	assert.Equal(t, int32(1), moves.Load())
}
