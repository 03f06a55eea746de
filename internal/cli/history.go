package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/lilseedabe/flickmv/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one action kind
}

// HistoryEntry is one stored undo entry.
type HistoryEntry struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Undone      bool   `json:"undone"`
	Hash        string `json:"hash"`
}

// HistoryResult is the log of one session.
type HistoryResult struct {
	SessionID string         `json:"session_id"`
	CursorSeq int64          `json:"cursor_seq"`
	Entries   []HistoryEntry `json:"entries"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Entries   int    `json:"entries"`
	CursorSeq int64  `json:"cursor_seq"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List sessions or show a session's undo log",
		Long: `List the sessions in a database, or show the undo log of one session.

Entries after the cursor are undone and would be discarded by the next edit.

Examples:
  flickmv history --db ./flickmv.db
  flickmv history --db ./flickmv.db --session 0192...
  flickmv history --db ./flickmv.db --session 0192... --kind move --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one action kind (move, trim, split, ...)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(ctx, st, formatter)
	}

	state, err := st.LoadState(ctx, opts.Session)
	if errors.Is(err, store.ErrSessionNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeSession, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to load session", err)
	}

	result := HistoryResult{
		SessionID: opts.Session,
		CursorSeq: state.CursorSeq,
		Entries:   []HistoryEntry{},
	}
	for i, e := range state.Entries {
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		result.Entries = append(result.Entries, HistoryEntry{
			Seq:         e.Seq,
			ID:          e.ID,
			Kind:        e.Kind,
			Description: e.Description,
			Active:      i == state.Cursor,
			Undone:      i > state.Cursor,
			Hash:        e.Hash,
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Session %s: %s\n", result.SessionID, english.Plural(len(state.Entries), "entry", "entries"))
		if len(result.Entries) == 0 {
			fmt.Fprintln(w, "  (no entries)")
			return
		}
		for _, e := range result.Entries {
			marker := " "
			switch {
			case e.Active:
				marker = ">"
			case e.Undone:
				marker = "~"
			}
			fmt.Fprintf(w, "%s %4d  %-8s %s\n", marker, e.Seq, e.Kind, e.Description)
		}
	})
}

func listSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{ID: s.ID, Name: s.Name, Entries: s.Entries, CursorSeq: s.CursorSeq})
	}
	return formatter.Success(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintln(w, "No sessions found in database.")
			return
		}
		for _, s := range out {
			fmt.Fprintf(w, "%s  %-20s %s, cursor seq %d\n",
				s.ID, s.Name, english.Plural(s.Entries, "entry", "entries"), s.CursorSeq)
		}
	})
}
