package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lilseedabe/flickmv/internal/config"
	"github.com/lilseedabe/flickmv/internal/harness"
	"github.com/lilseedabe/flickmv/internal/session"
	"github.com/lilseedabe/flickmv/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string
	Project  string
	Analysis string
	Events   string
}

// OutputLine is one session output written by the run command.
type OutputLine struct {
	Type    string  `json:"type"`
	Item    string  `json:"item,omitempty"`
	Action  string  `json:"action,omitempty"`
	Time    float64 `json:"time"`
	Track   int     `json:"track"`
	Snapped bool    `json:"snapped,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Detail  string  `json:"detail,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a persisted editing session from an event stream",
		Long: `Drive an editing session from a stream of input events.

Events are read one per line from stdin (or --events), in the same form as
scenario steps, e.g.:

  {"pointer_down": {"pointer": 1, "target": "c1", "x": 40, "y": 10}}
  {"pointer_move": {"pointer": 1, "x": 140, "y": 10}}
  {"pointer_up": {"pointer": 1, "x": 140, "y": 10}}
  {"key": "ctrl+z"}

Every output of the session is written to stdout as a JSON line. History
is persisted to the database; an existing --session is resumed with its
undo stack, otherwise a new session is created from --project.

Examples:
  flickmv run --db ./flickmv.db --project project.yaml < events.jsonl
  flickmv run --db ./flickmv.db --session 0192... --analysis beats.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to resume or create")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "initial project for a new session")
	cmd.Flags().StringVarP(&opts.Analysis, "analysis", "a", "", "beat analysis file")
	cmd.Flags().StringVar(&opts.Events, "events", "", "read events from a file instead of stdin")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	analysis, err := loadAnalysis(opts.Analysis)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load analysis", err)
	}

	in := cmd.InOrStdin()
	if opts.Events != "" {
		f, err := os.Open(opts.Events)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open events", err)
		}
		defer f.Close()
		in = f
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	out := json.NewEncoder(cmd.OutOrStdout())
	emit := func(o session.Output) {
		if err := out.Encode(OutputLine(o)); err != nil {
			logger.Error("write output", "error", err)
		}
	}

	s, err := openSession(ctx, st, cfg, opts, logger, emit)
	if err != nil {
		return err
	}
	if err := s.SetAnalysis(analysis); err != nil {
		return WrapExitError(ExitCommandError, "invalid analysis", err)
	}
	logger.Info("session ready", "session_id", s.ID(), "db", opts.Database)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	fed := make(chan error, 1)
	go func() {
		fed <- feedEvents(in, s, emit, logger)
	}()
	var readErr error
	select {
	case readErr = <-fed:
	case <-ctx.Done():
	}
	s.Stop()
	runErr := <-done

	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read events", readErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", runErr)
	}

	emit(session.Output{
		Type:   "session",
		Item:   s.ID(),
		Track:  s.HistoryCursor(),
		Detail: fmt.Sprintf("%d entries", len(s.History())),
	})
	return nil
}

// openSession resumes opts.Session from the store when it exists, and
// otherwise creates a session from opts.Project.
func openSession(ctx context.Context, st *store.Store, cfg config.Config, opts *RunOptions, logger *slog.Logger, emit func(session.Output)) (*session.Session, error) {
	base := []session.Option{
		session.WithLogger(logger),
		session.WithRecorder(st),
		session.WithOutput(emit),
	}

	if opts.Session != "" {
		state, err := st.LoadState(ctx, opts.Session)
		switch {
		case err == nil:
			logger.Info("resuming session", "session_id", opts.Session, "entries", len(state.Entries))
			return session.New(cfg, state.Project, append(base,
				session.WithID(opts.Session),
				session.WithHistoryOptions(state.HistoryOptions()...),
			)...)
		case !errors.Is(err, store.ErrSessionNotFound):
			return nil, WrapExitError(ExitCommandError, "failed to load session", err)
		}
	}

	if opts.Project == "" {
		return nil, NewExitError(ExitCommandError, "--project is required for a new session")
	}
	project, err := loadProject(opts.Project)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load project", err)
	}
	if opts.Session != "" {
		base = append(base, session.WithID(opts.Session))
	}
	s, err := session.New(cfg, project, base...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create session", err)
	}
	if err := st.CreateSession(ctx, s.ID(), project); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create session", err)
	}
	return s, nil
}

// feedEvents decodes one step per line and enqueues it. Blank lines and
// lines starting with # are skipped; malformed lines are reported as
// rejected outputs and skipped.
func feedEvents(r io.Reader, s *session.Session, emit func(session.Output), logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ev, err := decodeEvent([]byte(text), s, emit)
		if err != nil {
			logger.Warn("event rejected", "line", line, "error", err)
			detail := fmt.Sprintf("line %d: %v", line, err)
			s.Enqueue(session.Event{Type: session.EventTask, Task: func() {
				emit(session.Output{Type: session.OutputRejected, Detail: detail})
			}})
			continue
		}
		if !s.Enqueue(ev) {
			return nil
		}
	}
	return scanner.Err()
}

func decodeEvent(data []byte, s *session.Session, emit func(session.Output)) (session.Event, error) {
	var step harness.Step
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&step); err != nil {
		return session.Event{}, fmt.Errorf("parse event: %w", err)
	}
	if err := step.Validate(); err != nil {
		return session.Event{}, err
	}
	return step.Event(s, emit)
}
