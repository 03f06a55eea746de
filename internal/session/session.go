// Package session wires the timeline components into one editor session.
//
// A Session owns the clip model and every component that reads or writes
// it: the scale transform, snap engine, drag controller, history, waveform
// cache and key map. All mutation happens on one goroutine, either the
// caller of Process or the Run loop. Timer-driven work (drag frames, cache
// cleanup) is marshalled onto that goroutine through the event queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/utils/clock"

	"github.com/lilseedabe/flickmv/internal/config"
	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/keymap"
	"github.com/lilseedabe/flickmv/internal/scale"
	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/timeline"
	"github.com/lilseedabe/flickmv/internal/waveform"
)

// Recorder persists history transitions.
type Recorder interface {
	Record(ctx context.Context, sessionID string, ev history.Event[timeline.Project]) error
}

// Session is a single editor session.
//
// Thread-safety model:
//   - Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Process, Drain and the accessors: only from the goroutine that owns
//     the session (the Run goroutine while Run is active)
type Session struct {
	id     string
	cfg    config.Config
	logger *slog.Logger

	transform  scale.Transform
	scrollLeft float64
	scrollTop  float64
	width      float64
	height     float64

	snap    *snap.Engine
	drag    *drag.Controller
	history *history.Manager[timeline.Project]
	cache   *waveform.Cache
	keys    *keymap.Dispatcher

	samples  SampleSource
	recorder Recorder
	outputs  []func(Output)

	project   timeline.Project
	playhead  float64
	selection string
	active    *dragState
	pending   []history.Event[timeline.Project]

	queue *eventQueue

	scheduler drag.FrameScheduler
	clock     clock.WithDelayedExecution
	histOpts  []history.Option[timeline.Project]
	cacheOpts []waveform.Option
}

type dragState struct {
	id    string
	start float64
	track int
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session ID. The default is a UUIDv7.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithFrameScheduler replaces the clock-driven drag frame scheduler.
func WithFrameScheduler(fs drag.FrameScheduler) Option {
	return func(s *Session) {
		s.scheduler = fs
	}
}

// WithClock sets the clock driving drag frames.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithHistoryOptions appends options for the history manager.
func WithHistoryOptions(opts ...history.Option[timeline.Project]) Option {
	return func(s *Session) {
		s.histOpts = append(s.histOpts, opts...)
	}
}

// WithCacheOptions appends options for the waveform cache.
func WithCacheOptions(opts ...waveform.Option) Option {
	return func(s *Session) {
		s.cacheOpts = append(s.cacheOpts, opts...)
	}
}

// WithSampleSource sets where audio samples come from.
func WithSampleSource(src SampleSource) Option {
	return func(s *Session) {
		s.samples = src
	}
}

// WithRecorder persists every history transition.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithOutput registers an output observer.
func WithOutput(fn func(Output)) Option {
	return func(s *Session) {
		s.outputs = append(s.outputs, fn)
	}
}

// New creates a session editing project under cfg.
func New(cfg config.Config, project timeline.Project, opts ...Option) (*Session, error) {
	transform, err := scale.New(cfg.Scale, 1)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	s := &Session{
		cfg:       cfg,
		logger:    slog.Default(),
		transform: transform,
		width:     cfg.Viewport.Width,
		height:    cfg.Viewport.Height,
		project:   project.Clone(),
		queue:     newEventQueue(),
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = history.UUIDv7Generator{}.Generate()
	}
	if s.scheduler == nil {
		s.scheduler = drag.NewClockScheduler(s.clock, cfg.Drag.FrameInterval, drag.WithDispatch(s.enqueueTask))
	}

	s.snap = snap.NewEngine(snap.WithConfig(cfg.Grid), snap.WithLogger(s.logger))
	s.drag = drag.NewController(drag.Callbacks{
		OnStart: s.onDragStart,
		OnMove:  s.onDragMove,
		OnEnd:   s.onDragEnd,
	},
		drag.WithThrottle(cfg.Drag.Throttle),
		drag.WithScheduler(s.scheduler),
		drag.WithLogger(s.logger),
	)

	hopts := []history.Option[timeline.Project]{
		history.WithMaxSize[timeline.Project](cfg.History.MaxSize),
		history.WithLogger[timeline.Project](s.logger),
		history.WithApply[timeline.Project](s.applyState),
		history.WithObserver[timeline.Project](s.observeHistory),
	}
	s.history = history.New(s.project, timeline.Project.Clone, timeline.Project.Equal, append(hopts, s.histOpts...)...)

	copts := []waveform.Option{
		waveform.WithMaxBytes(cfg.Cache.MaxBytes),
		waveform.WithMaxItems(cfg.Cache.MaxItems),
		waveform.WithFingerprintSamples(cfg.Cache.FingerprintSamples),
		waveform.WithDeferrer(s.enqueueTask),
		waveform.WithLogger(s.logger),
	}
	s.cache = waveform.NewCache(append(copts, s.cacheOpts...)...)
	s.keys = keymap.New()
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Enqueue submits an event for the Run loop. Safe from any goroutine.
// Returns false after the session stopped.
func (s *Session) Enqueue(ev Event) bool {
	return s.queue.Enqueue(ev)
}

func (s *Session) enqueueTask(fn func()) {
	if !s.queue.Enqueue(Event{Type: EventTask, Task: fn}) {
		s.logger.Debug("task dropped: session stopped")
	}
}

// Run processes queued events until ctx is cancelled or Stop is called.
// Per-event failures are logged and processing continues.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting", "session_id", s.id)
	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			if err := s.Process(ctx, ev); err != nil {
				s.logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopping: context cancelled", "session_id", s.id)
			s.queue.Close()
			return ctx.Err()
		case <-s.queue.Wait():
			// The signal channel is closed by Stop; exit once drained.
			if s.queue.Len() == 0 && s.queue.Closed() {
				s.logger.Info("session stopping: queue closed", "session_id", s.id)
				return nil
			}
		}
	}
}

// Stop closes the queue, making Run return once it is drained.
func (s *Session) Stop() {
	s.queue.Close()
}

// Drain synchronously processes every queued event, including events
// queued while draining. It returns how many ran.
func (s *Session) Drain(ctx context.Context) int {
	n := 0
	for {
		ev, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		if err := s.Process(ctx, ev); err != nil {
			s.logEventError(ev, err)
		}
		n++
	}
}

// Process handles one event on the calling goroutine.
func (s *Session) Process(ctx context.Context, ev Event) error {
	err := s.dispatch(ev)
	if ferr := s.flushHistory(ctx); ferr != nil {
		err = errors.Join(err, ferr)
	}
	return err
}

func (s *Session) dispatch(ev Event) error {
	switch ev.Type {
	case EventPointerDown:
		return s.pointerDown(ev)
	case EventPointerMove:
		s.drag.PointerMove(ev.PointerID, ev.Point)
	case EventPointerUp:
		s.drag.PointerUp(ev.PointerID, ev.Point)
	case EventPointerCancel:
		s.drag.PointerCancel(ev.PointerID)
	case EventKey:
		return s.key(ev.Key)
	case EventEdit:
		if ev.Edit == nil {
			return fmt.Errorf("edit event missing edit data")
		}
		return s.ApplyEdit(*ev.Edit)
	case EventUndo:
		s.Undo()
	case EventRedo:
		s.Redo()
	case EventTask:
		if ev.Task == nil {
			return fmt.Errorf("task event missing task")
		}
		ev.Task()
	default:
		return fmt.Errorf("unknown event type %d", ev.Type)
	}
	return nil
}

func (s *Session) emit(o Output) {
	for _, fn := range s.outputs {
		fn(o)
	}
}

func (s *Session) logEventError(ev Event, err error) {
	s.logger.Error("event processing failed",
		"error", err,
		"session_id", s.id,
		"event_type", ev.Type.String(),
		"pointer_id", ev.PointerID,
		"target", ev.Target,
	)
}
