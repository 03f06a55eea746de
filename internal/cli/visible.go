package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lilseedabe/flickmv/internal/session"
)

// VisibleOptions holds flags for the visible command.
type VisibleOptions struct {
	*RootOptions
	Project    string
	ScrollLeft float64
	ScrollTop  float64
	Width      float64
	Height     float64
	Zoom       float64
}

// VisibleItem is one item inside the render window.
type VisibleItem struct {
	ID    string  `json:"id"`
	Kind  string  `json:"kind"`
	Track int     `json:"track"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VisibleResult holds the render window and the items inside it.
type VisibleResult struct {
	PixelsPerSecond float64       `json:"pixels_per_second"`
	FirstTrack      int           `json:"first_track"`
	LastTrack       int           `json:"last_track"`
	StartTime       float64       `json:"start_time"`
	EndTime         float64       `json:"end_time"`
	StartChunk      int           `json:"start_chunk"`
	EndChunk        int           `json:"end_chunk"`
	Items           []VisibleItem `json:"items"`
}

// NewVisibleCommand creates the visible command.
func NewVisibleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VisibleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "visible <project>",
		Short: "Show which items a viewport renders",
		Long: `Compute the render window for a viewport and list the items inside it.

Width and height default to the viewport section of the editor config.
Zoom is applied around the viewport centre before scrolling.

Examples:
  flickmv visible project.yaml --scroll-left 2400 --width 1280
  flickmv visible project.yaml --zoom 4 --scroll-top 120 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisible(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.ScrollLeft, "scroll-left", 0, "horizontal scroll in pixels")
	cmd.Flags().Float64Var(&opts.ScrollTop, "scroll-top", 0, "vertical scroll in pixels")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "viewport width in pixels")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "viewport height in pixels")
	cmd.Flags().Float64Var(&opts.Zoom, "zoom", 1, "zoom level")

	return cmd
}

func runVisible(opts *VisibleOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	project, err := loadProject(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeProject, "failed to load project", err)
	}
	if !(opts.Zoom > 0) {
		return NewExitError(ExitCommandError, fmt.Sprintf("zoom must be positive, got %v", opts.Zoom))
	}

	s, err := session.New(cfg, project, session.WithLogger(newLogger(opts.RootOptions, cmd)))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to create session", err)
	}
	width, height := cfg.Viewport.Width, cfg.Viewport.Height
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}
	s.SetSize(width, height)
	s.Zoom(opts.Zoom)
	s.Scroll(opts.ScrollLeft, opts.ScrollTop)

	win := s.Window()
	result := VisibleResult{
		PixelsPerSecond: s.Transform().PixelsPerSecond(),
		FirstTrack:      win.Tracks.StartIndex,
		LastTrack:       win.Tracks.EndIndex,
		StartTime:       win.Time.StartTime,
		EndTime:         win.Time.EndTime,
		StartChunk:      win.Time.StartChunk,
		EndChunk:        win.Time.EndChunk,
		Items:           []VisibleItem{},
	}
	for _, it := range s.Visible() {
		sp := it.Placement()
		result.Items = append(result.Items, VisibleItem{
			ID:    sp.ID,
			Kind:  string(it.Kind()),
			Track: sp.Track,
			Start: sp.Start,
			End:   sp.End(),
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		if win.Empty() {
			fmt.Fprintln(w, "Nothing visible.")
			return
		}
		fmt.Fprintf(w, "Tracks %d-%d, %.3fs-%.3fs (chunks %d-%d) at %.0f px/s\n",
			result.FirstTrack, result.LastTrack, result.StartTime, result.EndTime,
			result.StartChunk, result.EndChunk, result.PixelsPerSecond)
		for _, it := range result.Items {
			fmt.Fprintf(w, "  %-12s %-10s track %d  %.3f-%.3f\n", it.ID, it.Kind, it.Track, it.Start, it.End)
		}
	})
}
