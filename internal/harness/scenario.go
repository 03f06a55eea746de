package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// Scenario is a scripted editing session with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional editor config path. Relative paths are resolved
	// against the scenario file.
	Config string `yaml:"config,omitempty"`

	// Project is the initial project.
	Project *timeline.Project `yaml:"project"`

	// Analysis is an optional beat grid loaded before the first step.
	Analysis *snap.Analysis `yaml:"analysis,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted input. Exactly one action field must be set.
type Step struct {
	PointerDown   *PointerStep `yaml:"pointer_down,omitempty"`
	PointerMove   *PointerStep `yaml:"pointer_move,omitempty"`
	PointerUp     *PointerStep `yaml:"pointer_up,omitempty"`
	PointerCancel *PointerStep `yaml:"pointer_cancel,omitempty"`

	// Frame fires pending drag frames.
	Frame bool `yaml:"frame,omitempty"`

	// Key is a chord such as "ctrl+z".
	Key string `yaml:"key,omitempty"`

	Undo bool `yaml:"undo,omitempty"`
	Redo bool `yaml:"redo,omitempty"`

	Edit *EditStep `yaml:"edit,omitempty"`

	// Snap resolves a time against the grid and traces the result.
	Snap *float64 `yaml:"snap,omitempty"`

	// Zoom multiplies the zoom around the viewport centre.
	Zoom float64 `yaml:"zoom,omitempty"`

	Scroll *ScrollStep `yaml:"scroll,omitempty"`

	// ExpectError makes the step pass only if it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// PointerStep is a pointer event in viewport pixels.
type PointerStep struct {
	Pointer int     `yaml:"pointer"`
	Target  string  `yaml:"target,omitempty"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
}

// EditStep is a programmatic project edit.
type EditStep struct {
	Action   string           `yaml:"action"`
	ID       string           `yaml:"id,omitempty"`
	Start    float64          `yaml:"start,omitempty"`
	Duration float64          `yaml:"duration,omitempty"`
	Track    int              `yaml:"track,omitempty"`
	At       float64          `yaml:"at,omitempty"`
	NewID    string           `yaml:"new_id,omitempty"`
	Item     *timeline.Record `yaml:"item,omitempty"`
}

// ScrollStep sets the scroll offsets in pixels.
type ScrollStep struct {
	Left float64 `yaml:"left"`
	Top  float64 `yaml:"top"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Output is the output type (trace_count, trace_contains).
	Output string `yaml:"output,omitempty"`

	// Outputs is the expected output order (trace_order).
	Outputs []string `yaml:"outputs,omitempty"`

	// Count is the expected number of outputs (trace_count) or history
	// entries (history).
	Count *int `yaml:"count,omitempty"`

	// Cursor is the expected history cursor index (history).
	Cursor *int `yaml:"cursor,omitempty"`

	// ID names the item (item, trace_contains).
	ID string `yaml:"id,omitempty"`

	// Absent asserts that the item does not exist (item).
	Absent bool `yaml:"absent,omitempty"`

	Start    *float64 `yaml:"start,omitempty"`
	Duration *float64 `yaml:"duration,omitempty"`
	Track    *int     `yaml:"track,omitempty"`

	// Time is the expected time (trace_contains, playhead).
	Time *float64 `yaml:"time,omitempty"`

	Snapped *bool  `yaml:"snapped,omitempty"`
	Kind    string `yaml:"kind,omitempty"`

	// Times are the expected markers (markers).
	Times []float64 `yaml:"times,omitempty"`
}

// Assertion type constants.
const (
	AssertHistory       = "history"
	AssertItem          = "item"
	AssertPlayhead      = "playhead"
	AssertMarkers       = "markers"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if sc.Config != "" && !filepath.IsAbs(sc.Config) {
		sc.Config = filepath.Join(filepath.Dir(path), sc.Config)
	}
	if sc.Config != "" {
		if _, err := os.Stat(sc.Config); err != nil {
			return nil, fmt.Errorf("invalid scenario: config file: %w", err)
		}
	}
	return sc, nil
}

// ParseScenario parses scenario YAML. Config paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Project == nil {
		return fmt.Errorf("project is required")
	}
	if s.Analysis != nil {
		if err := s.Analysis.Validate(); err != nil {
			return fmt.Errorf("analysis: %w", err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the step's action name, or "" when none or several are set.
func (s *Step) Name() string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(s.PointerDown != nil, "pointer_down")
	add(s.PointerMove != nil, "pointer_move")
	add(s.PointerUp != nil, "pointer_up")
	add(s.PointerCancel != nil, "pointer_cancel")
	add(s.Frame, "frame")
	add(s.Key != "", "key")
	add(s.Undo, "undo")
	add(s.Redo, "redo")
	add(s.Edit != nil, "edit")
	add(s.Snap != nil, "snap")
	add(s.Zoom != 0, "zoom")
	add(s.Scroll != nil, "scroll")
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func validateStep(index int, s *Step) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHistory:
		if a.Count == nil && a.Cursor == nil {
			return fmt.Errorf("assertions[%d]: count or cursor is required for history", index)
		}
	case AssertItem:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for item", index)
		}
	case AssertPlayhead:
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for playhead", index)
		}
	case AssertMarkers:
		if a.Times == nil {
			return fmt.Errorf("assertions[%d]: times is required for markers", index)
		}
	case AssertTraceContains:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Outputs) == 0 {
			return fmt.Errorf("assertions[%d]: outputs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
