package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lilseedabe/flickmv/internal/timeline"
)

// EntryRecord is a stored history entry.
type EntryRecord struct {
	SessionID   string
	Seq         int64
	ID          string
	Kind        string
	Description string
	Before      timeline.Project
	After       timeline.Project
	PrevHash    string
	Hash        string

	// raw JSON as stored, used for hash verification
	beforeJSON string
	afterJSON  string
}

// SessionInfo summarises a stored session.
type SessionInfo struct {
	ID        string
	Name      string
	Entries   int
	CursorSeq int64
}

// Snapshot is a stored full project state.
type Snapshot struct {
	ID       int64
	EntrySeq int64
	Project  timeline.Project
	Hash     string
}

// ReadEntries returns the entries of a session ordered by seq ASC.
//
// Returns an empty slice (not nil) if the session has no entries.
func (s *Store) ReadEntries(ctx context.Context, sessionID string) ([]EntryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, id, kind, description, before, after, prev_hash, hash
		FROM history_entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []EntryRecord{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadCursor returns the cursor seq of a session.
// Returns sql.ErrNoRows if the session has no cursor.
func (s *Store) ReadCursor(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM history_cursor WHERE session_id = ?
	`, sessionID).Scan(&seq)
	return seq, err
}

// LatestSnapshot returns the most recent snapshot of a session.
// Returns sql.ErrNoRows if there is none.
func (s *Store) LatestSnapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	var (
		snap Snapshot
		data string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entry_seq, project, hash
		FROM snapshots
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, sessionID).Scan(&snap.ID, &snap.EntrySeq, &data, &snap.Hash)
	if err != nil {
		return Snapshot{}, err
	}
	if got := projectHash(data); got != snap.Hash {
		return Snapshot{}, fmt.Errorf("snapshot %d: hash mismatch: stored %s, computed %s", snap.ID, snap.Hash, got)
	}
	snap.Project, err = unmarshalProject(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}

// ListSessions returns every session ordered by id.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name,
		       (SELECT COUNT(*) FROM history_entries e WHERE e.session_id = s.id),
		       COALESCE((SELECT c.seq FROM history_cursor c WHERE c.session_id = s.id), 0)
		FROM sessions s
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Entries, &info.CursorSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanEntry(rows *sql.Rows) (EntryRecord, error) {
	var e EntryRecord
	if err := rows.Scan(
		&e.SessionID, &e.Seq, &e.ID, &e.Kind, &e.Description,
		&e.beforeJSON, &e.afterJSON, &e.PrevHash, &e.Hash,
	); err != nil {
		return EntryRecord{}, fmt.Errorf("scan entry: %w", err)
	}

	var err error
	if e.Before, err = unmarshalProject(e.beforeJSON); err != nil {
		return EntryRecord{}, fmt.Errorf("entry %d before: %w", e.Seq, err)
	}
	if e.After, err = unmarshalProject(e.afterJSON); err != nil {
		return EntryRecord{}, fmt.Errorf("entry %d after: %w", e.Seq, err)
	}
	return e, nil
}
