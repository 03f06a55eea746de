package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lilseedabe/flickmv/internal/config"
	"github.com/lilseedabe/flickmv/internal/drag"
	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/session"
	"github.com/lilseedabe/flickmv/internal/store"
	"github.com/lilseedabe/flickmv/internal/testutil"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// SessionID is the fixed session ID used for scenario runs.
const SessionID = "scenario"

// Harness executes one scenario.
type Harness struct {
	store   *store.Store
	session *session.Session
	frames  *drag.ManualScheduler
	logger  *slog.Logger

	result *Result
	step   int
	seq    int64
}

// Option configures a run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger routes session logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database with a
// deterministic clock and ID sequence. An error is returned only when the
// scenario cannot be run; step and assertion failures are reported in the
// result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ro := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&ro)
	}

	cfg := config.Defaults()
	if scenario.Config != "" {
		var err error
		if cfg, err = config.Load(scenario.Config); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.CreateSession(ctx, SessionID, *scenario.Project); err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		frames: drag.NewManualScheduler(),
		logger: ro.logger,
		result: NewResult(),
	}
	h.session, err = session.New(cfg, *scenario.Project,
		session.WithID(SessionID),
		session.WithLogger(ro.logger),
		session.WithFrameScheduler(h.frames),
		session.WithRecorder(st),
		session.WithOutput(h.record),
		session.WithHistoryOptions(
			history.WithClock[timeline.Project](testutil.NewDeterministicClock()),
			history.WithIDGenerator[timeline.Project](testutil.NewSequentialIDs("edit")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if scenario.Analysis != nil {
		if err := h.session.SetAnalysis(scenario.Analysis); err != nil {
			return nil, fmt.Errorf("load analysis: %w", err)
		}
	}

	for i := range scenario.Steps {
		h.step = i
		h.runStep(ctx, &scenario.Steps[i])
	}

	h.collect(ctx)
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) record(o session.Output) {
	h.seq++
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:     h.seq,
		Step:    h.step,
		Type:    o.Type,
		Item:    o.Item,
		Action:  o.Action,
		TimeUS:  toMicros(o.Time),
		Track:   o.Track,
		Snapped: o.Snapped,
		Kind:    o.Kind,
		Detail:  o.Detail,
	})
}

func (h *Harness) runStep(ctx context.Context, step *Step) {
	name := step.Name()
	err := h.execute(ctx, step)

	switch {
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", h.step, name, err))
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none", h.step, name, step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		h.result.AddError(fmt.Sprintf("steps[%d] %s: error %q does not contain %q", h.step, name, err, step.ExpectError))
	}
}

func (h *Harness) execute(ctx context.Context, step *Step) error {
	ev, err := step.Event(h.session, h.record)
	if errors.Is(err, ErrFrameStep) {
		h.frames.Flush()
		return nil
	}
	if err != nil {
		return err
	}
	return h.session.Process(ctx, ev)
}

// collect captures the final state and checks that the persisted log
// agrees with the live session.
func (h *Harness) collect(ctx context.Context) {
	s := h.session
	r := h.result
	r.Project = s.Project()
	r.HistoryLen = len(s.History())
	r.HistoryCursor = s.HistoryCursor()
	r.Playhead = s.Playhead()

	if _, err := h.store.VerifyChain(ctx, SessionID); err != nil {
		r.AddError(fmt.Sprintf("stored history: %v", err))
	}
	state, err := h.store.LoadState(ctx, SessionID)
	if err != nil {
		r.AddError(fmt.Sprintf("stored history: %v", err))
		return
	}
	if !state.Project.Equal(r.Project) {
		r.AddError("stored history: reloaded project differs from session project")
	}
	if len(state.Entries) != r.HistoryLen {
		r.AddError(fmt.Sprintf("stored history: %d entries, session has %d", len(state.Entries), r.HistoryLen))
	}
}
