package cli

import (
	"fmt"
	"os"

	"github.com/lilseedabe/flickmv/internal/config"
	"github.com/lilseedabe/flickmv/internal/snap"
	"github.com/lilseedabe/flickmv/internal/store"
	"github.com/lilseedabe/flickmv/internal/timeline"
)

// loadConfig loads the --config file, or the defaults when none is given.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config == "" {
		return config.Defaults(), nil
	}
	return config.Load(opts.Config)
}

// loadProject loads and validates a project file.
func loadProject(path string) (timeline.Project, error) {
	p, err := timeline.LoadProject(path)
	if err != nil {
		return timeline.Project{}, err
	}
	if err := p.Validate(); err != nil {
		return timeline.Project{}, err
	}
	return p, nil
}

// loadAnalysis loads an optional analysis file. An empty path yields nil.
func loadAnalysis(path string) (*snap.Analysis, error) {
	if path == "" {
		return nil, nil
	}
	return snap.LoadAnalysis(path)
}

// openExisting opens a store that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
