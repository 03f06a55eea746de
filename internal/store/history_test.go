package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

func startOf(t *testing.T, p timeline.Project) float64 {
	t.Helper()
	it, _, ok := p.Find("c1")
	require.True(t, ok)
	return it.Placement().Start
}

func seqs(entries []EntryRecord) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Seq
	}
	return out
}

func TestRecord_ExecuteUndoRedo(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	require.NoError(t, s.CreateSession(ctx, "s1", testProject()))

	m := newTestManager(t, s, "s1", 100)
	p := testProject()
	for _, start := range []float64{1, 2, 3} {
		p = moved(t, p, start)
		require.True(t, m.Execute(timeline.ActionMove, "move", p))
	}

	entries, err := s.ReadEntries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, seqs(entries))
	assert.Equal(t, "e01", entries[0].ID)
	assert.Empty(t, entries[0].PrevHash)
	assert.Equal(t, entries[0].Hash, entries[1].PrevHash)

	require.True(t, m.Undo())
	cursor, err := s.ReadCursor(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)

	state, err := s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor)
	assert.Equal(t, 2.0, startOf(t, state.Project))

	require.True(t, m.Redo())
	state, err = s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, startOf(t, state.Project))
}

func TestRecord_BranchDiscard(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 100)

	p := testProject()
	for _, start := range []float64{1, 2, 3} {
		p = moved(t, p, start)
		m.Execute(timeline.ActionMove, "move", p)
	}
	m.Undo()
	m.Undo()
	require.True(t, m.Execute(timeline.ActionMove, "move", moved(t, m.Current(), 7)))

	entries, err := s.ReadEntries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, seqs(entries))

	n, err := s.VerifyChain(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	state, err := s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, startOf(t, state.Project))
}

func TestRecord_Eviction(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 2)

	p := testProject()
	for _, start := range []float64{1, 2, 3, 4} {
		p = moved(t, p, start)
		m.Execute(timeline.ActionMove, "move", p)
	}

	entries, err := s.ReadEntries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, seqs(entries))

	// The oldest retained entry links to an evicted one.
	n, err := s.VerifyChain(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadState_BeforeFirstEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 100)

	m.Execute(timeline.ActionMove, "move", moved(t, testProject(), 5))
	require.True(t, m.Undo())

	state, err := s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.CursorSeq)
	assert.Equal(t, -1, state.Cursor)
	assert.True(t, state.Project.Equal(testProject()))
	assert.Len(t, state.Entries, 1)
}

func TestLoadState_FromSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	require.NoError(t, s.CreateSession(ctx, "s1", testProject()))

	state, err := s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Project.Equal(testProject()))
	assert.Empty(t, state.Entries)

	m := newTestManager(t, s, "s1", 100)
	m.Execute(timeline.ActionMove, "move", moved(t, testProject(), 1))
	reset := moved(t, testProject(), 9)
	m.Reset(reset)

	state, err = s.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Entries)
	assert.Equal(t, 9.0, startOf(t, state.Project))

	snap, err := s.LatestSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, startOf(t, snap.Project))
}

func TestLoadState_UnknownSession(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadState(testContext(t), "ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	require.NoError(t, s.CreateSession(ctx, "s1", testProject()))
	require.NoError(t, s.CreateSession(ctx, "s1", moved(t, testProject(), 4)))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE session_id = ?", "s1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 100)

	p := testProject()
	for _, start := range []float64{1, 2, 3} {
		p = moved(t, p, start)
		m.Execute(timeline.ActionMove, "move", p)
	}
	_, err := s.db.Exec("UPDATE history_entries SET description = 'forged' WHERE seq = 2")
	require.NoError(t, err)

	n, err := s.VerifyChain(ctx, "s1")
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, int64(2), chainErr.Seq)
	assert.Equal(t, 1, n)
}

func TestVerifyChain_DetectsBrokenLink(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 100)

	p := testProject()
	for _, start := range []float64{1, 2} {
		p = moved(t, p, start)
		m.Execute(timeline.ActionMove, "move", p)
	}
	_, err := s.db.Exec("DELETE FROM history_entries WHERE seq = 1")
	require.NoError(t, err)
	m.Execute(timeline.ActionMove, "move", moved(t, p, 3))

	n, err := s.VerifyChain(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.db.Exec("UPDATE history_entries SET prev_hash = 'x' WHERE seq = 3")
	require.NoError(t, err)
	_, err = s.VerifyChain(ctx, "s1")
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, int64(3), chainErr.Seq)
}

func TestListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	require.NoError(t, s.CreateSession(ctx, "b", testProject()))
	m := newTestManager(t, s, "a", 100)
	m.Execute(timeline.ActionMove, "move", moved(t, testProject(), 1))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, SessionInfo{ID: "a", Name: "demo", Entries: 1, CursorSeq: 1}, sessions[0])
	assert.Equal(t, SessionInfo{ID: "b", Name: "demo", Entries: 0, CursorSeq: 0}, sessions[1])
}

func TestWriteEntry_DuplicateSeqFails(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	m := newTestManager(t, s, "s1", 100)
	m.Execute(timeline.ActionMove, "move", moved(t, testProject(), 1))

	entry := m.Entries()[0]
	err := s.WriteEntry(ctx, "s1", entry)
	require.Error(t, err)
}

func TestHistoryOptions_ResumesSession(t *testing.T) {
	s := createTestStore(t)
	ctx := testContext(t)
	require.NoError(t, s.CreateSession(ctx, "s1", testProject()))

	m := newTestManager(t, s, "s1", 100)
	p := testProject()
	for _, start := range []float64{1, 2, 3} {
		p = moved(t, p, start)
		require.True(t, m.Execute(timeline.ActionMove, "move", p))
	}
	require.True(t, m.Undo())

	state, err := s.LoadState(ctx, "s1")
	require.NoError(t, err)

	opts := append(state.HistoryOptions(),
		history.WithIDGenerator[timeline.Project](history.NewFixedGenerator("r01")),
		history.WithObserver[timeline.Project](func(ev history.Event[timeline.Project]) {
			require.NoError(t, s.Record(ctx, "s1", ev))
		}),
	)
	resumed := history.New(state.Project, timeline.Project.Clone, timeline.Project.Equal, opts...)
	assert.Equal(t, 3, resumed.Len())
	assert.Equal(t, 1, resumed.Cursor())
	assert.True(t, resumed.CanRedo())

	require.True(t, resumed.Execute(timeline.ActionMove, "move", moved(t, state.Project, 5)))

	entries, err := s.ReadEntries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, seqs(entries))
	assert.Equal(t, "r01", entries[2].ID)

	n, err := s.VerifyChain(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.True(t, resumed.Undo())
	require.True(t, resumed.Undo())
	assert.Equal(t, 1.0, startOf(t, resumed.Current()))
}
