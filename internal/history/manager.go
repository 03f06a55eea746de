package history

import (
	"log/slog"
	"slices"
	"sync"
)

// DefaultMaxSize is the default number of retained entries.
const DefaultMaxSize = 100

// Entry is one recorded transition.
type Entry[T any] struct {
	ID          string
	Kind        string
	Description string
	Seq         int64
	Before      T
	After       T
}

// Op identifies a history transition reported to observers.
type Op int

const (
	OpExecute Op = iota
	OpUndo
	OpRedo
	OpReset
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpExecute:
		return "execute"
	case OpUndo:
		return "undo"
	case OpRedo:
		return "redo"
	case OpReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event describes a completed transition.
type Event[T any] struct {
	Op Op

	// Entry is the entry written, undone or redone. Zero for OpReset.
	Entry Entry[T]

	// Cursor and CursorSeq locate the active entry after the transition.
	// CursorSeq is 0 when the cursor is before the first entry.
	Cursor    int
	CursorSeq int64

	// Discarded counts redo-branch entries dropped by an execute. All
	// entries after BranchSeq were removed (0 means all entries).
	Discarded int
	BranchSeq int64

	// Evicted counts head entries dropped to respect the size bound.
	// Every entry up to and including EvictedSeq was removed.
	Evicted    int
	EvictedSeq int64

	// State is the state after the transition.
	State T
}

// Observer is notified after each transition, outside the manager lock.
type Observer[T any] func(Event[T])

// Manager is the undo/redo log.
type Manager[T any] struct {
	mu       sync.Mutex
	entries  []Entry[T]
	cursor   int
	current  T
	applying bool

	clone func(T) T
	equal func(a, b T) bool
	apply func(T)

	maxSize   int
	clock     Sequencer
	ids       IDGenerator
	logger    *slog.Logger
	observers []Observer[T]
}

// Option configures a Manager.
type Option[T any] func(*Manager[T])

// WithMaxSize bounds the number of retained entries. Values below 1 are
// raised to 1.
func WithMaxSize[T any](n int) Option[T] {
	return func(m *Manager[T]) {
		m.maxSize = max(n, 1)
	}
}

// WithClock sets the sequencer stamping entries.
func WithClock[T any](c Sequencer) Option[T] {
	return func(m *Manager[T]) {
		m.clock = c
	}
}

// WithIDGenerator sets the entry ID source.
func WithIDGenerator[T any](g IDGenerator) Option[T] {
	return func(m *Manager[T]) {
		m.ids = g
	}
}

// WithLogger sets the logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(m *Manager[T]) {
		m.logger = l
	}
}

// WithObserver registers an observer.
func WithObserver[T any](o Observer[T]) Option[T] {
	return func(m *Manager[T]) {
		m.observers = append(m.observers, o)
	}
}

// WithApply sets the hook that pushes undo/redo states into the live
// editor. Execute calls made from inside the hook are suppressed.
func WithApply[T any](fn func(T)) Option[T] {
	return func(m *Manager[T]) {
		m.apply = fn
	}
}

// WithRestore resumes a persisted log. entries must be oldest first and
// cursor must index the active entry (-1 before the first); the initial
// state passed to New must be the state at the cursor. Entries beyond the
// size bound are dropped from the head.
func WithRestore[T any](entries []Entry[T], cursor int) Option[T] {
	return func(m *Manager[T]) {
		m.entries = slices.Clone(entries)
		m.cursor = min(max(cursor, -1), len(entries)-1)
	}
}

// New creates a manager holding initial. clone must return a deep copy and
// equal must compare structurally.
func New[T any](initial T, clone func(T) T, equal func(a, b T) bool, opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{
		cursor:  -1,
		clone:   clone,
		equal:   equal,
		maxSize: DefaultMaxSize,
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if over := len(m.entries) - m.maxSize; over > 0 {
		m.entries = m.entries[over:]
		m.cursor = max(m.cursor-over, -1)
	}
	m.current = clone(initial)
	return m
}

// Execute records a transition from the current state to next. It returns
// false without recording when next equals the current state or when
// called while an undo/redo is being applied.
func (m *Manager[T]) Execute(kind, description string, next T) bool {
	m.mu.Lock()
	if m.applying {
		m.mu.Unlock()
		m.logger.Debug("execute suppressed during undo/redo", "kind", kind)
		return false
	}
	if m.equal(m.current, next) {
		m.mu.Unlock()
		return false
	}

	ev := Event[T]{Op: OpExecute}
	if tail := len(m.entries) - 1; m.cursor < tail {
		ev.Discarded = tail - m.cursor
		ev.BranchSeq = m.seqAt(m.cursor)
		clear(m.entries[m.cursor+1:])
		m.entries = m.entries[:m.cursor+1]
	}

	entry := Entry[T]{
		ID:          m.ids.Generate(),
		Kind:        kind,
		Description: description,
		Seq:         m.clock.Next(),
		Before:      m.clone(m.current),
		After:       m.clone(next),
	}
	m.entries = append(m.entries, entry)
	m.cursor = len(m.entries) - 1
	m.current = m.clone(next)

	if over := len(m.entries) - m.maxSize; over > 0 {
		ev.Evicted = over
		ev.EvictedSeq = m.entries[over-1].Seq
		clear(m.entries[:over])
		m.entries = m.entries[over:]
		m.cursor -= over
		m.logger.Debug("history evicted", "count", over, "through_seq", ev.EvictedSeq)
	}

	ev.Entry = m.cloneEntry(entry)
	m.fillLocked(&ev)
	m.mu.Unlock()

	m.notify(ev)
	return true
}

// Undo restores the state before the entry at the cursor. It returns false
// when there is nothing to undo.
func (m *Manager[T]) Undo() bool {
	m.mu.Lock()
	if m.applying || m.cursor < 0 {
		m.mu.Unlock()
		return false
	}
	entry := m.entries[m.cursor]
	m.cursor--
	m.current = m.clone(entry.Before)
	return m.finishApply(OpUndo, entry)
}

// Redo reapplies the entry after the cursor. It returns false when there is
// nothing to redo.
func (m *Manager[T]) Redo() bool {
	m.mu.Lock()
	if m.applying || m.cursor >= len(m.entries)-1 {
		m.mu.Unlock()
		return false
	}
	m.cursor++
	entry := m.entries[m.cursor]
	m.current = m.clone(entry.After)
	return m.finishApply(OpRedo, entry)
}

// finishApply runs the apply hook with the applying flag raised, then
// notifies observers. Called with m.mu held; returns with it released.
func (m *Manager[T]) finishApply(op Op, entry Entry[T]) bool {
	ev := Event[T]{Op: op, Entry: m.cloneEntry(entry)}
	m.fillLocked(&ev)
	state := ev.State
	m.applying = true
	m.mu.Unlock()

	if m.apply != nil {
		m.apply(m.clone(state))
	}

	m.mu.Lock()
	m.applying = false
	m.mu.Unlock()

	m.notify(ev)
	return true
}

// Reset drops all entries and makes state current.
func (m *Manager[T]) Reset(state T) {
	m.mu.Lock()
	clear(m.entries)
	m.entries = m.entries[:0]
	m.cursor = -1
	m.current = m.clone(state)
	ev := Event[T]{Op: OpReset}
	m.fillLocked(&ev)
	m.mu.Unlock()

	m.notify(ev)
}

// CanUndo reports whether Undo would succeed.
func (m *Manager[T]) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor >= 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager[T]) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Current returns a copy of the current state.
func (m *Manager[T]) Current() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clone(m.current)
}

// Cursor returns the index of the active entry, -1 when none.
func (m *Manager[T]) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Len returns the number of retained entries.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns copies of the retained entries, oldest first.
func (m *Manager[T]) Entries() []Entry[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry[T], len(m.entries))
	for i, e := range m.entries {
		out[i] = m.cloneEntry(e)
	}
	return out
}

func (m *Manager[T]) cloneEntry(e Entry[T]) Entry[T] {
	e.Before = m.clone(e.Before)
	e.After = m.clone(e.After)
	return e
}

func (m *Manager[T]) seqAt(i int) int64 {
	if i < 0 || i >= len(m.entries) {
		return 0
	}
	return m.entries[i].Seq
}

func (m *Manager[T]) fillLocked(ev *Event[T]) {
	ev.Cursor = m.cursor
	ev.CursorSeq = m.seqAt(m.cursor)
	ev.State = m.clone(m.current)
}

func (m *Manager[T]) notify(ev Event[T]) {
	for _, o := range m.observers {
		o(ev)
	}
}
