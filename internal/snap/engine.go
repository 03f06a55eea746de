package snap

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/lilseedabe/flickmv/internal/scale"
)

const (
	// DedupWindow merges candidates closer than one millisecond.
	DedupWindow = 0.001

	// MaxSubdivisionCandidates caps subdivision generation for long timelines.
	MaxSubdivisionCandidates = 100000

	// MinTolerancePx and MaxTolerancePx bound the tolerance in screen space.
	MinTolerancePx = 10.0
	MaxTolerancePx = 50.0
)

// Engine resolves dragged times against the beat grid.
//
// Candidate lists are memoized per (config, analysis, duration, custom
// points). Any change to one of them invalidates the memo. Safe for
// concurrent use.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	analysis *Analysis
	custom   []float64
	version  uint64 // bumped on every SetCustomPoints
	logger   *slog.Logger

	memo      memoKey
	memoValid bool
	memoList  []Candidate
}

type memoKey struct {
	cfg      Config
	analysis *Analysis
	duration float64
	version  uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the initial configuration. Invalid values are ignored
// and the default stays active.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.Validate() == nil {
			e.cfg = cfg
		}
	}
}

// WithLogger sets the logger used for rejected updates.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine with DefaultConfig and no analysis.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig replaces the configuration after validation. On error the
// previous configuration is retained.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		e.logger.Warn("grid config rejected", "error", err)
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.memoValid = false
	return nil
}

// SetAnalysis replaces the beat analysis wholesale. A nil analysis clears
// it and disables snapping. The analysis is copied; later mutation of a
// by the caller has no effect.
func (e *Engine) SetAnalysis(a *Analysis) error {
	var next *Analysis
	if a != nil {
		if err := a.Validate(); err != nil {
			e.logger.Warn("beat analysis rejected", "error", err)
			return err
		}
		next = a.clone()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analysis = next
	e.memoValid = false
	return nil
}

// Analysis returns the active analysis or nil.
func (e *Engine) Analysis() *Analysis {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.analysis == nil {
		return nil
	}
	return e.analysis.clone()
}

// SetCustomPoints replaces the extra snap points (markers, playhead, other
// clip edges). Negative and non-finite points are dropped.
func (e *Engine) SetCustomPoints(points []float64) {
	kept := make([]float64, 0, len(points))
	for _, p := range points {
		if p >= 0 && !math.IsInf(p, 0) {
			kept = append(kept, p)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom = kept
	e.version++
	e.memoValid = false
}

// Candidates returns the sorted, de-duplicated candidate list for the
// given view. The returned slice must not be modified.
func (e *Engine) Candidates(view View) []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.candidatesLocked(view.Duration)
}

// Tolerance returns the snap radius in seconds for the view, or 0 when no
// analysis is loaded.
func (e *Engine) Tolerance(view View) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.analysis == nil {
		return 0
	}
	return Tolerance(e.analysis.BPM, e.cfg.QuantizeStrength, view.PixelsPerSecond)
}

// Resolve maps a raw time to its snapped time. It never fails: with the
// grid disabled or no analysis loaded the raw time is returned unchanged.
func (e *Engine) Resolve(raw float64, view View) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Enabled || e.analysis == nil {
		return Result{Time: raw}
	}
	return e.resolveLocked(raw, view, e.candidatesLocked(view.Duration))
}

// ResolveGrid is Resolve against the beat grid alone. Custom points are
// skipped but left in place.
func (e *Engine) ResolveGrid(raw float64, view View) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Enabled || e.analysis == nil {
		return Result{Time: raw}
	}
	return e.resolveLocked(raw, view, buildCandidates(e.cfg, e.analysis, nil, view.Duration))
}

func (e *Engine) resolveLocked(raw float64, view View, candidates []Candidate) Result {
	t := clampTime(raw, view.Duration)
	tol := Tolerance(e.analysis.BPM, e.cfg.QuantizeStrength, view.PixelsPerSecond)

	best := Result{Time: t}
	bestDist := math.Inf(1)
	for _, c := range candidates {
		d := math.Abs(c.Time - t)
		if d < tol && d < bestDist {
			bestDist = d
			best = Result{Time: c.Time, Snapped: true, Kind: c.Kind}
		}
	}
	return best
}

// Tolerance computes the snap radius: a sixteenth of a beat scaled by
// strength and widened to a quarter beat at full strength, then held
// inside the [10px, 50px] band at the given zoom.
func Tolerance(bpm, strength, pixelsPerSecond float64) float64 {
	if !(bpm > 0) {
		return 0
	}
	base := 60 / bpm / 16
	tol := base * (0.2 + 0.8*strength) * 4
	if pixelsPerSecond > 0 {
		tol = scale.Clamp(tol, MinTolerancePx/pixelsPerSecond, MaxTolerancePx/pixelsPerSecond)
	}
	return tol
}

func (e *Engine) candidatesLocked(duration float64) []Candidate {
	key := memoKey{cfg: e.cfg, analysis: e.analysis, duration: duration, version: e.version}
	if e.memoValid && e.memo == key {
		return e.memoList
	}
	e.memo = key
	e.memoList = buildCandidates(e.cfg, e.analysis, e.custom, duration)
	e.memoValid = true
	return e.memoList
}

func buildCandidates(cfg Config, a *Analysis, custom []float64, duration float64) []Candidate {
	if a == nil {
		return nil
	}
	inRange := func(t float64) bool { return duration <= 0 || t <= duration }

	var out []Candidate
	if cfg.SnapToBeat {
		for _, t := range a.BeatTimes {
			if inRange(t) {
				out = append(out, Candidate{Time: t, Kind: KindBeat})
			}
		}
	}
	if cfg.SnapToBar {
		for _, t := range a.Bars {
			if inRange(t) {
				out = append(out, Candidate{Time: t, Kind: KindBar})
			}
		}
	}
	if cfg.Subdivisions > 1 && duration > 0 {
		out = appendSubdivisions(out, a, cfg.Subdivisions, duration)
	}
	for _, t := range custom {
		if inRange(t) {
			out = append(out, Candidate{Time: t, Kind: KindCustom})
		}
	}

	slices.SortStableFunc(out, func(x, y Candidate) int {
		switch {
		case x.Time < y.Time:
			return -1
		case x.Time > y.Time:
			return 1
		default:
			return int(y.Kind) - int(x.Kind)
		}
	})
	return dedup(out)
}

func appendSubdivisions(out []Candidate, a *Analysis, subdivisions int, duration float64) []Candidate {
	interval := a.BeatDuration() / float64(subdivisions)
	if !(interval > 0) {
		return out
	}
	first := 0.0
	if len(a.BeatTimes) > 0 {
		first = a.BeatTimes[0]
	}
	for i := 0; i < MaxSubdivisionCandidates; i++ {
		t := first + float64(i)*interval
		if t > duration {
			break
		}
		out = append(out, Candidate{Time: t, Kind: KindSubdivision})
	}
	return out
}

// dedup collapses clusters closer than DedupWindow, keeping the candidate
// with the strongest kind. A cluster spans DedupWindow from its first
// candidate, whichever candidate ends up kept.
func dedup(sorted []Candidate) []Candidate {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	clusterStart := sorted[0].Time
	for _, c := range sorted[1:] {
		last := &out[len(out)-1]
		if c.Time-clusterStart < DedupWindow {
			if c.Kind > last.Kind {
				*last = c
			}
			continue
		}
		out = append(out, c)
		clusterStart = c.Time
	}
	return out
}

func clampTime(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
