package cli

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lilseedabe/flickmv/internal/session"
	"github.com/lilseedabe/flickmv/internal/timeline"
	"github.com/lilseedabe/flickmv/internal/waveform"
)

// WaveformOptions holds flags for the waveform command.
type WaveformOptions struct {
	*RootOptions
	Analysis  string
	Output    string
	AudioDir  string
	Width     int
	Height    int
	Style     string
	Color     string
	ShowBeats bool
}

// WaveformResult describes a rendered image.
type WaveformResult struct {
	Item   string `json:"item"`
	Source string `json:"source"`
	Output string `json:"output"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
}

// NewWaveformCommand creates the waveform command.
func NewWaveformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WaveformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "waveform <project> <audio-item>",
		Short: "Render an audio item's waveform to PNG",
		Long: `Render the waveform of an audio item to a PNG image.

The item's source is read as a WAV file relative to the project file (or
--audio-dir). Style, colour and the beat overlay default to the waveform
section of the editor config.

Examples:
  flickmv waveform project.yaml a1 -o a1.png
  flickmv waveform project.yaml a1 -o a1.png --analysis beats.yaml --beats --style filled`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWaveform(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "PNG output path (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().StringVarP(&opts.Analysis, "analysis", "a", "", "beat analysis file for the overlay")
	cmd.Flags().StringVar(&opts.AudioDir, "audio-dir", "", "directory audio sources are resolved against")
	cmd.Flags().IntVar(&opts.Width, "width", 800, "image width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", 120, "image height in pixels")
	cmd.Flags().StringVar(&opts.Style, "style", "", "bars|line|filled")
	cmd.Flags().StringVar(&opts.Color, "color", "", "hex colour, e.g. #4ade80")
	cmd.Flags().BoolVar(&opts.ShowBeats, "beats", false, "draw beat lines")

	return cmd
}

func runWaveform(opts *WaveformOptions, projectPath, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.Style != "" {
		cfg.Waveform.Style = waveform.Style(opts.Style)
	}
	if opts.Color != "" {
		cfg.Waveform.Color = opts.Color
	}
	if opts.ShowBeats {
		cfg.Waveform.ShowBeats = true
	}

	project, err := loadProject(projectPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeProject, "failed to load project", err)
	}
	analysis, err := loadAnalysis(opts.Analysis)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeAnalysis, "failed to load analysis", err)
	}

	dir := opts.AudioDir
	if dir == "" {
		dir = filepath.Dir(projectPath)
	}
	src := waveform.NewWAVSource(dir)
	s, err := session.New(cfg, project,
		session.WithLogger(newLogger(opts.RootOptions, cmd)),
		session.WithSampleSource(src),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to create session", err)
	}
	if err := s.SetAnalysis(analysis); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeAnalysis, "invalid analysis", err)
	}

	img, err := s.Waveform(id, opts.Width, opts.Height)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeSamples, fmt.Sprintf("failed to render %s", id), err)
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return WrapExitError(ExitCommandError, "failed to write PNG", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write PNG", err)
	}

	result := WaveformResult{
		Item:   id,
		Output: opts.Output,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Bytes:  int64(len(img.Pix)),
	}
	if it, _, ok := project.Find(id); ok {
		if audio, ok := it.(timeline.AudioTrack); ok {
			result.Source = audio.Source
		}
	}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %dx%d waveform written to %s (%s)\n",
			id, result.Width, result.Height, result.Output, humanize.IBytes(uint64(result.Bytes)))
	})
}
