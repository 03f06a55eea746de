package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lilseedabe/flickmv/internal/scale"
	"github.com/lilseedabe/flickmv/internal/snap"
)

// SnapOptions holds flags for the snap command.
type SnapOptions struct {
	*RootOptions
	Project  string
	Analysis string
	Zoom     float64
	Duration float64
	Exclude  string
}

// SnapResolution is one resolved time.
type SnapResolution struct {
	Raw     float64 `json:"raw"`
	Time    float64 `json:"time"`
	Snapped bool    `json:"snapped"`
	Kind    string  `json:"kind"`
}

// SnapResult holds the snap command output.
type SnapResult struct {
	PixelsPerSecond float64          `json:"pixels_per_second"`
	Tolerance       float64          `json:"tolerance"`
	Candidates      int              `json:"candidates"`
	Resolutions     []SnapResolution `json:"resolutions"`
}

// NewSnapCommand creates the snap command.
func NewSnapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snap <seconds>...",
		Short: "Resolve times against the beat grid",
		Long: `Resolve one or more times against the beat grid.

Candidates come from the analysis (bars, beats and subdivisions per the
grid config) and, when a project is given, from item edges and markers.
The tolerance scales with the zoom level.

Examples:
  flickmv snap --analysis beats.yaml 1.02 3.9
  flickmv snap --analysis beats.yaml --project project.yaml --zoom 2 4.48`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnap(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "project whose edges and markers are snap targets")
	cmd.Flags().StringVarP(&opts.Analysis, "analysis", "a", "", "beat analysis file (required)")
	_ = cmd.MarkFlagRequired("analysis")
	cmd.Flags().Float64Var(&opts.Zoom, "zoom", 1, "zoom level")
	cmd.Flags().Float64Var(&opts.Duration, "duration", 0, "timeline duration in seconds (defaults to the project's or the last beat)")
	cmd.Flags().StringVar(&opts.Exclude, "exclude", "", "item whose edges are not snap targets")

	return cmd
}

func runSnap(opts *SnapOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	times := make([]float64, len(args))
	for i, arg := range args {
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid time %q", arg))
		}
		times[i] = t
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	analysis, err := loadAnalysis(opts.Analysis)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeAnalysis, "failed to load analysis", err)
	}
	transform, err := scale.New(cfg.Scale, opts.Zoom)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid zoom", err)
	}

	engine := snap.NewEngine(snap.WithConfig(cfg.Grid), snap.WithLogger(newLogger(opts.RootOptions, cmd)))
	if err := engine.SetAnalysis(analysis); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeAnalysis, "invalid analysis", err)
	}

	duration := opts.Duration
	if opts.Project != "" {
		p, err := loadProject(opts.Project)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeProject, "failed to load project", err)
		}
		engine.SetCustomPoints(p.SnapPoints(opts.Exclude))
		if duration == 0 {
			duration = p.Duration
		}
	}
	if duration == 0 && len(analysis.BeatTimes) > 0 {
		duration = analysis.BeatTimes[len(analysis.BeatTimes)-1]
	}

	view := snap.View{Duration: duration, PixelsPerSecond: transform.PixelsPerSecond()}
	result := SnapResult{
		PixelsPerSecond: view.PixelsPerSecond,
		Tolerance:       engine.Tolerance(view),
		Candidates:      len(engine.Candidates(view)),
		Resolutions:     make([]SnapResolution, 0, len(times)),
	}
	for _, t := range times {
		r := engine.Resolve(t, view)
		result.Resolutions = append(result.Resolutions, SnapResolution{
			Raw:     t,
			Time:    r.Time,
			Snapped: r.Snapped,
			Kind:    r.Kind.String(),
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%.0f px/s, tolerance %.3fs, %d candidate(s)\n",
			result.PixelsPerSecond, result.Tolerance, result.Candidates)
		for _, r := range result.Resolutions {
			if r.Snapped {
				fmt.Fprintf(w, "  %.3f -> %.3f (%s)\n", r.Raw, r.Time, r.Kind)
			} else {
				fmt.Fprintf(w, "  %.3f -> %.3f\n", r.Raw, r.Time)
			}
		}
	})
}
