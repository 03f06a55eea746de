package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// ErrSessionNotFound is returned when no state exists for a session.
var ErrSessionNotFound = errors.New("session not found")

// SessionState is a session rebuilt from the store.
type SessionState struct {
	SessionID string
	Entries   []EntryRecord
	CursorSeq int64
	// Cursor is the index of the active entry, -1 before the first.
	Cursor  int
	Project timeline.Project
}

// LoadState rebuilds the project at the cursor. The state is the After of
// the cursor entry; before the first entry it is that entry's Before, or
// the latest snapshot when the log is empty.
func (s *Store) LoadState(ctx context.Context, sessionID string) (SessionState, error) {
	state := SessionState{SessionID: sessionID, Cursor: -1}

	cursor, err := s.ReadCursor(ctx, sessionID)
	if err == sql.ErrNoRows {
		return state, fmt.Errorf("load state %q: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return state, fmt.Errorf("load state: %w", err)
	}
	state.CursorSeq = cursor

	state.Entries, err = s.ReadEntries(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("load state: %w", err)
	}

	if cursor > 0 {
		for i, e := range state.Entries {
			if e.Seq == cursor {
				state.Cursor = i
				state.Project = e.After
				return state, nil
			}
		}
		return state, fmt.Errorf("load state: cursor seq %d has no entry", cursor)
	}

	if len(state.Entries) > 0 {
		state.Project = state.Entries[0].Before
		return state, nil
	}

	snap, err := s.LatestSnapshot(ctx, sessionID)
	if err == sql.ErrNoRows {
		return state, fmt.Errorf("load state %q: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return state, fmt.Errorf("load state: %w", err)
	}
	state.Project = snap.Project
	return state, nil
}

// HistoryOptions resumes a history manager at this state: the stored
// entries, the cursor, and a clock continuing after the highest seq.
// The manager must be created with Project as its initial state.
func (st SessionState) HistoryOptions() []history.Option[timeline.Project] {
	entries := make([]history.Entry[timeline.Project], len(st.Entries))
	var last int64
	for i, e := range st.Entries {
		entries[i] = history.Entry[timeline.Project]{
			ID:          e.ID,
			Kind:        e.Kind,
			Description: e.Description,
			Seq:         e.Seq,
			Before:      e.Before,
			After:       e.After,
		}
		last = max(last, e.Seq)
	}
	return []history.Option[timeline.Project]{
		history.WithRestore(entries, st.Cursor),
		history.WithClock[timeline.Project](history.NewClockAt(last)),
	}
}

// ChainError reports the first broken link in a history chain.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("history chain broken at seq %d: %s", e.Seq, e.Reason)
}

// VerifyChain recomputes every entry hash and checks the links between
// consecutive entries and states. The first entry's prev_hash is not
// checked because its predecessor may have been evicted.
func (s *Store) VerifyChain(ctx context.Context, sessionID string) (int, error) {
	entries, err := s.ReadEntries(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("verify chain: %w", err)
	}

	for i, e := range entries {
		want, err := entryHash(e.SessionID, e.Seq, e.ID, e.Kind, e.Description, e.beforeJSON, e.afterJSON, e.PrevHash)
		if err != nil {
			return i, fmt.Errorf("verify chain: %w", err)
		}
		if want != e.Hash {
			return i, &ChainError{Seq: e.Seq, Reason: "content hash mismatch"}
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.PrevHash != prev.Hash {
			return i, &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("prev_hash does not match seq %d", prev.Seq)}
		}
		if !prev.After.Equal(e.Before) {
			return i, &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("before state differs from seq %d after state", prev.Seq)}
		}
	}
	return len(entries), nil
}
