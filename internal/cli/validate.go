package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lilseedabe/flickmv/internal/config"
	"github.com/lilseedabe/flickmv/internal/harness"
	"github.com/lilseedabe/flickmv/internal/snap"
)

// Kinds of file the validate command understands.
const (
	KindProject  = "project"
	KindConfig   = "config"
	KindScenario = "scenario"
	KindAnalysis = "analysis"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Kind string
}

// ValidationResult describes a valid file.
type ValidationResult struct {
	Kind    string         `json:"kind"`
	Path    string         `json:"path"`
	Valid   bool           `json:"valid"`
	Summary map[string]any `json:"summary,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a project, config, scenario or analysis file",
		Long: `Validate a project, editor config, test scenario or beat analysis file.

Projects are checked for overlapping IDs, negative times and dangling
transitions. Configs are checked against the embedded CUE schema.

Exit codes:
  0 - File is valid
  1 - File is invalid
  2 - Command error (unknown kind, etc.)

Examples:
  flickmv validate project.yaml
  flickmv validate --kind config editor.yaml
  flickmv validate --kind scenario scenarios/drag.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", KindProject, "file kind (project|config|scenario|analysis)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	formatter.VerboseLog("Validating %s file %s", opts.Kind, path)

	var (
		summary map[string]any
		code    string
		err     error
	)
	switch opts.Kind {
	case KindProject:
		code = ErrCodeProject
		summary, err = validateProject(path)
	case KindConfig:
		code = ErrCodeConfig
		summary, err = validateConfig(path)
	case KindScenario:
		code = ErrCodeScenario
		summary, err = validateScenario(path)
	case KindAnalysis:
		code = ErrCodeAnalysis
		summary, err = validateAnalysis(path)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", opts.Kind))
	}
	if err != nil {
		return formatter.Fail(ExitFailure, code, fmt.Sprintf("invalid %s: %s", opts.Kind, path), err)
	}

	result := ValidationResult{Kind: opts.Kind, Path: path, Valid: true, Summary: summary}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is a valid %s\n", path, opts.Kind)
		for _, line := range summaryLines(opts.Kind, summary) {
			fmt.Fprintf(w, "  %s\n", line)
		}
	})
}

func validateProject(path string) (map[string]any, error) {
	p, err := loadProject(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":     p.Name,
		"items":    len(p.Items),
		"tracks":   p.Tracks,
		"duration": p.Duration,
		"markers":  len(p.Markers),
	}, nil
}

func validateConfig(path string) (map[string]any, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"base_pixels_per_second": cfg.Scale.BasePixelsPerSecond,
		"history_max_size":       cfg.History.MaxSize,
		"cache_max_bytes":        cfg.Cache.MaxBytes,
	}, nil
}

func validateScenario(path string) (map[string]any, error) {
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":       sc.Name,
		"steps":      len(sc.Steps),
		"assertions": len(sc.Assertions),
	}, nil
}

func validateAnalysis(path string) (map[string]any, error) {
	a, err := snap.LoadAnalysis(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bpm":   a.BPM,
		"beats": len(a.BeatTimes),
		"bars":  len(a.Bars),
	}, nil
}

func summaryLines(kind string, s map[string]any) []string {
	switch kind {
	case KindProject:
		return []string{
			fmt.Sprintf("%q: %d item(s) on %d track(s), %.3fs, %d marker(s)",
				s["name"], s["items"], s["tracks"], s["duration"], s["markers"]),
		}
	case KindConfig:
		return []string{
			fmt.Sprintf("base rate %v px/s, history %d, waveform cache %s",
				s["base_pixels_per_second"], s["history_max_size"],
				humanize.IBytes(uint64(s["cache_max_bytes"].(int64)))),
		}
	case KindScenario:
		return []string{fmt.Sprintf("%s: %d step(s), %d assertion(s)", s["name"], s["steps"], s["assertions"])}
	case KindAnalysis:
		return []string{fmt.Sprintf("%v BPM, %d beat(s), %d bar(s)", s["bpm"], s["beats"], s["bars"])}
	}
	return nil
}
