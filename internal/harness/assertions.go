package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// timeEpsilon is the tolerance for time comparisons in seconds.
const timeEpsilon = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for trace assertions
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s item=%s t=%.6f snapped=%t\n",
				ev.Seq, ev.Step, ev.Type, ev.Item, ev.Time(), ev.Snapped)
		}
	}

	return buf.String()
}

func timesEqual(a, b float64) bool {
	return math.Abs(a-b) <= timeEpsilon
}

// assertTraceContains checks that some output matches every field the
// assertion sets.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type != a.Output {
			continue
		}
		if a.ID != "" && ev.Item != a.ID {
			continue
		}
		if a.Time != nil && !timesEqual(ev.Time(), *a.Time) {
			continue
		}
		if a.Snapped != nil && ev.Snapped != *a.Snapped {
			continue
		}
		if a.Kind != "" && ev.Kind != a.Kind {
			continue
		}
		if a.Track != nil && ev.Track != *a.Track {
			continue
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatch(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func describeMatch(a Assertion) string {
	parts := []string{"output " + a.Output}
	if a.ID != "" {
		parts = append(parts, "item "+a.ID)
	}
	if a.Time != nil {
		parts = append(parts, fmt.Sprintf("time %v", *a.Time))
	}
	if a.Snapped != nil {
		parts = append(parts, fmt.Sprintf("snapped %t", *a.Snapped))
	}
	if a.Kind != "" {
		parts = append(parts, "kind "+a.Kind)
	}
	if a.Track != nil {
		parts = append(parts, fmt.Sprintf("track %d", *a.Track))
	}
	return strings.Join(parts, ", ")
}

// assertTraceOrder checks that the outputs appear as a subsequence of the
// trace. Intervening outputs are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Outputs) && ev.Type == a.Outputs[next] {
			next++
		}
	}
	if next == len(a.Outputs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("outputs in order: %v", a.Outputs),
		Actual:   fmt.Sprintf("matched %v, then no %s", a.Outputs[:next], a.Outputs[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the output appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == a.Output {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Output),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertHistory(r *Result, a Assertion) error {
	if a.Count != nil && r.HistoryLen != *a.Count {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("%d entries", *a.Count),
			Actual:   fmt.Sprintf("%d entries", r.HistoryLen),
		}
	}
	if a.Cursor != nil && r.HistoryCursor != *a.Cursor {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("cursor %d", *a.Cursor),
			Actual:   fmt.Sprintf("cursor %d", r.HistoryCursor),
		}
	}
	return nil
}

func assertItem(r *Result, a Assertion) error {
	it, _, ok := r.Project.Find(a.ID)
	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertItem,
				Expected: fmt.Sprintf("no item %s", a.ID),
				Actual:   "item exists",
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertItem,
			Expected: fmt.Sprintf("item %s", a.ID),
			Actual:   "item not found",
		}
	}

	sp := it.Placement()
	var diffs []string
	if a.Start != nil && !timesEqual(sp.Start, *a.Start) {
		diffs = append(diffs, fmt.Sprintf("start %v, want %v", sp.Start, *a.Start))
	}
	if a.Duration != nil && !timesEqual(sp.Duration, *a.Duration) {
		diffs = append(diffs, fmt.Sprintf("duration %v, want %v", sp.Duration, *a.Duration))
	}
	if a.Track != nil && sp.Track != *a.Track {
		diffs = append(diffs, fmt.Sprintf("track %d, want %d", sp.Track, *a.Track))
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertItem,
			Expected: fmt.Sprintf("item %s matches", a.ID),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func assertPlayhead(r *Result, a Assertion) error {
	if !timesEqual(r.Playhead, *a.Time) {
		return &AssertionError{
			Type:     AssertPlayhead,
			Expected: fmt.Sprintf("playhead %v", *a.Time),
			Actual:   fmt.Sprintf("playhead %v", r.Playhead),
		}
	}
	return nil
}

func assertMarkers(r *Result, a Assertion) error {
	if !slices.EqualFunc(r.Project.Markers, a.Times, timesEqual) {
		return &AssertionError{
			Type:     AssertMarkers,
			Expected: fmt.Sprintf("markers %v", a.Times),
			Actual:   fmt.Sprintf("markers %v", r.Project.Markers),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertHistory:
			err = assertHistory(result, a)
		case AssertItem:
			err = assertItem(result, a)
		case AssertPlayhead:
			err = assertPlayhead(result, a)
		case AssertMarkers:
			err = assertMarkers(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}

	return errors
}
