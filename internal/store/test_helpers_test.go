package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lilseedabe/flickmv/internal/history"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject() timeline.Project {
	return timeline.Project{
		Name:     "demo",
		Duration: 10,
		Tracks:   2,
		Items: []timeline.Item{
			timeline.Clip{Span: timeline.Span{ID: "c1", Start: 0, Duration: 2}, Source: "intro.mp4"},
		},
	}
}

// newTestManager returns a history manager whose transitions are recorded
// into s under sessionID.
func newTestManager(t *testing.T, s *Store, sessionID string, maxSize int) *history.Manager[timeline.Project] {
	t.Helper()
	ids := make([]string, 64)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%02d", i+1)
	}
	return history.New(testProject(), timeline.Project.Clone, timeline.Project.Equal,
		history.WithMaxSize[timeline.Project](maxSize),
		history.WithClock[timeline.Project](history.NewClock()),
		history.WithIDGenerator[timeline.Project](history.NewFixedGenerator(ids...)),
		history.WithObserver[timeline.Project](func(ev history.Event[timeline.Project]) {
			if err := s.Record(testContext(t), sessionID, ev); err != nil {
				t.Errorf("Record(%s) failed: %v", ev.Op, err)
			}
		}),
	)
}

func moved(t *testing.T, p timeline.Project, start float64) timeline.Project {
	t.Helper()
	next, err := p.Move("c1", start, 0)
	if err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	return next
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
