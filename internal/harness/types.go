package harness

import (
	"math"

	"github.com/lilseedabe/flickmv/internal/timeline"
)

// TraceEvent is one session output, in the order it was emitted.
// Times are integer microseconds so traces serialize canonically.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Step    int    `json:"step"`
	Type    string `json:"type"`
	Item    string `json:"item,omitempty"`
	Action  string `json:"action,omitempty"`
	TimeUS  int64  `json:"time_us"`
	Track   int    `json:"track"`
	Snapped bool   `json:"snapped"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Time returns the event time in seconds.
func (e TraceEvent) Time() float64 {
	return float64(e.TimeUS) / 1e6
}

// toMicros rounds seconds to integer microseconds.
func toMicros(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final state.
	Project       timeline.Project `json:"-"`
	HistoryLen    int              `json:"history_len"`
	HistoryCursor int              `json:"history_cursor"`
	Playhead      float64          `json:"playhead"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
