package cli

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilseedabe/flickmv/internal/store"
)

func parseOutputLines(t *testing.T, out string) []OutputLine {
	t.Helper()
	var lines []OutputLine
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var line OutputLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func findOutput(lines []OutputLine, typ string, match func(OutputLine) bool) (OutputLine, bool) {
	for _, l := range lines {
		if l.Type == typ && (match == nil || match(l)) {
			return l, true
		}
	}
	return OutputLine{}, false
}

// runEvents drives session s1 in a fresh database from testdata/events.jsonl.
func runEvents(t *testing.T) (string, []OutputLine) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "flickmv.db")
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd,
		"--db", dbPath, "--session", "s1",
		"--project", "testdata/project.yaml",
		"--analysis", "testdata/beats.yaml",
		"--events", "testdata/events.jsonl")
	require.NoError(t, err)
	return dbPath, parseOutputLines(t, out)
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunRequiresProjectForNewSession(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--project is required")
}

func TestRunProcessesEvents(t *testing.T) {
	_, lines := runEvents(t)

	end, ok := findOutput(lines, "drag_end", nil)
	require.True(t, ok, "no drag_end in %v", lines)
	assert.Equal(t, "c1", end.Item)
	assert.InDelta(t, 1.0, end.Time, 1e-9)
	assert.True(t, end.Snapped)
	assert.Equal(t, "beat", end.Kind)

	_, ok = findOutput(lines, "history", func(l OutputLine) bool { return l.Kind == "undo" })
	assert.True(t, ok, "undo not reported")

	_, ok = findOutput(lines, "rejected", func(l OutputLine) bool { return l.Item == "ghost" })
	assert.True(t, ok, "failed edit not rejected")

	bad, ok := findOutput(lines, "rejected", func(l OutputLine) bool { return l.Item == "" })
	require.True(t, ok, "malformed line not rejected")
	assert.Contains(t, bad.Detail, "line 8")

	last := lines[len(lines)-1]
	assert.Equal(t, "session", last.Type)
	assert.Equal(t, "s1", last.Item)
	assert.Equal(t, 0, last.Track)
	assert.Equal(t, "2 entries", last.Detail)
}

func TestRunResumesSession(t *testing.T) {
	dbPath, _ := runEvents(t)

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetIn(strings.NewReader("{\"redo\": true}\n"))
	out, err := execute(t, cmd, "--db", dbPath, "--session", "s1")
	require.NoError(t, err)
	lines := parseOutputLines(t, out)

	redo, ok := findOutput(lines, "history", func(l OutputLine) bool { return l.Kind == "redo" })
	require.True(t, ok, "redo not reported in %v", lines)
	assert.Equal(t, "move", redo.Action)

	last := lines[len(lines)-1]
	assert.Equal(t, 1, last.Track)
	assert.Equal(t, "2 entries", last.Detail)
}

func TestHistoryListsSessions(t *testing.T) {
	dbPath, _ := runEvents(t)

	cmd := NewHistoryCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "2 entries")
}

func TestHistoryShowsEntries(t *testing.T) {
	dbPath, _ := runEvents(t)

	cmd := NewHistoryCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, "--db", dbPath, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 2)
	assert.True(t, resp.Data.Entries[0].Active)
	assert.Contains(t, resp.Data.Entries[0].Description, "c1")
	assert.True(t, resp.Data.Entries[1].Undone)
	assert.Contains(t, resp.Data.Entries[1].Description, "c2")
	assert.Equal(t, resp.Data.Entries[0].Seq, resp.Data.CursorSeq)

	cmd = NewHistoryCommand(&RootOptions{Format: "text"})
	out, err = execute(t, cmd, "--db", dbPath, "--session", "s1", "--kind", "trim")
	require.NoError(t, err)
	assert.Contains(t, out, "Session s1: 2 entries")
	assert.Contains(t, out, "(no entries)")
}

func TestHistoryErrors(t *testing.T) {
	cmd := NewHistoryCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	dbPath, _ := runEvents(t)
	cmd = NewHistoryCommand(&RootOptions{Format: "text"})
	_, err = execute(t, cmd, "--db", dbPath, "--session", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")
}

func TestReplayVerifiesSession(t *testing.T) {
	dbPath, _ := runEvents(t)

	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.AllVerified)
	require.Len(t, resp.Data.Sessions, 1)
	sr := resp.Data.Sessions[0]
	assert.Equal(t, "s1", sr.SessionID)
	assert.Equal(t, 2, sr.Entries)
	assert.Equal(t, 0, sr.Cursor)
	assert.Equal(t, 3, sr.Items)
	assert.NotEmpty(t, sr.ProjectHash)
}

func TestReplayDetectsTampering(t *testing.T) {
	dbPath, _ := runEvents(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec("UPDATE history_entries SET description = 'forged' WHERE session_id = 's1'")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "--db", dbPath, "--session", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Session: s1")
	assert.Contains(t, out, "history chain broken")
	assert.Contains(t, out, "✗ History verification failed")
}

func TestReplayUnknownSession(t *testing.T) {
	dbPath, _ := runEvents(t)

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd, "--db", dbPath, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
