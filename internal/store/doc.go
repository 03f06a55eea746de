// Package store provides SQLite-backed durable storage for editor history.
//
// Each session owns an ordered log of history entries, a cursor and a set
// of project snapshots:
//   - history_entries: one row per recorded edit, keyed by (session_id, seq)
//   - history_cursor: the seq of the active entry, 0 before the first
//   - snapshots: full project states written on session creation and reset
//
// # Ordering
//
// All ordering uses the history seq (a logical clock), never timestamps,
// so a replayed log reads back identically.
//
// # Integrity
//
// Entries form a hash chain. Each entry hash covers its content and the
// hash of the entry before it; VerifyChain walks the chain. Projects are
// stored as JSON with their own content hash.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
