package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// CreateSession registers a session and snapshots its initial project.
// Uses ON CONFLICT(id) DO NOTHING for idempotency; an existing session
// keeps its snapshots.
func (s *Store) CreateSession(ctx context.Context, id string, initial timeline.Project) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, initial.Name)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if err := setCursor(ctx, tx, id, 0); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := saveSnapshot(ctx, tx, id, 0, initial); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
}

// WriteEntry appends an entry, chaining its hash to the latest entry of
// the session. The session row is created when missing.
func (s *Store) WriteEntry(ctx context.Context, sessionID string, e history.Entry[timeline.Project]) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSession(ctx, tx, sessionID, e.After.Name); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
		return writeEntry(ctx, tx, sessionID, e)
	})
}

// TruncateAfter deletes every entry with seq > seq. Zero deletes all.
func (s *Store) TruncateAfter(ctx context.Context, sessionID string, seq int64) error {
	return truncateAfter(ctx, s.db, sessionID, seq)
}

// DeleteThrough deletes every entry with seq <= seq.
func (s *Store) DeleteThrough(ctx context.Context, sessionID string, seq int64) error {
	return deleteThrough(ctx, s.db, sessionID, seq)
}

// SetCursor records the seq of the active entry, 0 before the first.
func (s *Store) SetCursor(ctx context.Context, sessionID string, seq int64) error {
	return setCursor(ctx, s.db, sessionID, seq)
}

// SaveSnapshot stores a full project state taken at entrySeq.
func (s *Store) SaveSnapshot(ctx context.Context, sessionID string, entrySeq int64, p timeline.Project) error {
	return saveSnapshot(ctx, s.db, sessionID, entrySeq, p)
}

// Record persists one history transition atomically. It implements the
// session recorder:
//   - execute: drop the discarded branch, append, drop evicted entries
//   - undo/redo: move the cursor
//   - reset: clear the log and snapshot the new state
func (s *Store) Record(ctx context.Context, sessionID string, ev history.Event[timeline.Project]) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSession(ctx, tx, sessionID, ev.State.Name); err != nil {
			return fmt.Errorf("record %s: %w", ev.Op, err)
		}
		switch ev.Op {
		case history.OpExecute:
			if ev.Discarded > 0 {
				if err := truncateAfter(ctx, tx, sessionID, ev.BranchSeq); err != nil {
					return err
				}
			}
			if err := writeEntry(ctx, tx, sessionID, ev.Entry); err != nil {
				return err
			}
			if ev.Evicted > 0 {
				if err := deleteThrough(ctx, tx, sessionID, ev.EvictedSeq); err != nil {
					return err
				}
			}
		case history.OpReset:
			if err := truncateAfter(ctx, tx, sessionID, 0); err != nil {
				return err
			}
			if err := saveSnapshot(ctx, tx, sessionID, 0, ev.State); err != nil {
				return err
			}
		case history.OpUndo, history.OpRedo:
		default:
			return fmt.Errorf("record: unknown op %d", ev.Op)
		}
		return setCursor(ctx, tx, sessionID, ev.CursorSeq)
	})
}

func ensureSession(ctx context.Context, db execer, id, name string) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

func writeEntry(ctx context.Context, db execer, sessionID string, e history.Entry[timeline.Project]) error {
	before, err := marshalProject(e.Before)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	after, err := marshalProject(e.After)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	var prev string
	err = db.QueryRowContext(ctx, `
		SELECT hash FROM history_entries
		WHERE session_id = ? AND seq < ?
		ORDER BY seq DESC
		LIMIT 1
	`, sessionID, e.Seq).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("write entry: previous hash: %w", err)
	}

	hash, err := entryHash(sessionID, e.Seq, e.ID, e.Kind, e.Description, before, after, prev)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO history_entries
		(session_id, seq, id, kind, description, before, after, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, e.Seq, e.ID, e.Kind, e.Description, before, after, prev, hash)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func truncateAfter(ctx context.Context, db execer, sessionID string, seq int64) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM history_entries WHERE session_id = ? AND seq > ?
	`, sessionID, seq); err != nil {
		return fmt.Errorf("truncate after %d: %w", seq, err)
	}
	return nil
}

func deleteThrough(ctx context.Context, db execer, sessionID string, seq int64) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM history_entries WHERE session_id = ? AND seq <= ?
	`, sessionID, seq); err != nil {
		return fmt.Errorf("delete through %d: %w", seq, err)
	}
	return nil
}

func setCursor(ctx context.Context, db execer, sessionID string, seq int64) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO history_cursor (session_id, seq) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET seq = excluded.seq
	`, sessionID, seq); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

func saveSnapshot(ctx context.Context, db execer, sessionID string, entrySeq int64, p timeline.Project) error {
	data, err := marshalProject(p)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, entry_seq, project, hash) VALUES (?, ?, ?, ?)
	`, sessionID, entrySeq, data, projectHash(data)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
