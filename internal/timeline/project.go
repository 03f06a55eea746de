package timeline

import (
	"fmt"
	"math"
	"slices"
)

// ActionKind labels a history entry.
type ActionKind = string

const (
	ActionMove   ActionKind = "move"
	ActionTrim   ActionKind = "trim"
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
	ActionSplit  ActionKind = "split"
	ActionMarker ActionKind = "marker"
	ActionImport ActionKind = "import"
)

// Project is the editable clip graph. Edits never modify the receiver;
// they return an updated copy.
type Project struct {
	Name     string
	Duration float64
	Tracks   int
	Items    []Item
	Markers  []float64
}

// Clone returns a deep copy.
func (p Project) Clone() Project {
	p.Items = slices.Clone(p.Items)
	p.Markers = slices.Clone(p.Markers)
	return p
}

// Equal reports structural equality.
func (p Project) Equal(o Project) bool {
	return p.Name == o.Name &&
		p.Duration == o.Duration &&
		p.Tracks == o.Tracks &&
		slices.Equal(p.Markers, o.Markers) &&
		slices.Equal(p.Items, o.Items)
}

// Find returns the item with id and its index.
func (p Project) Find(id string) (Item, int, bool) {
	for i, it := range p.Items {
		if it.Placement().ID == id {
			return it, i, true
		}
	}
	return nil, -1, false
}

// SnapPoints returns marker times and the edges of every item except
// exclude, used as custom snap candidates while dragging.
func (p Project) SnapPoints(exclude string) []float64 {
	pts := slices.Clone(p.Markers)
	for _, it := range p.Items {
		sp := it.Placement()
		if sp.ID == exclude {
			continue
		}
		pts = append(pts, sp.Start, sp.End())
	}
	slices.Sort(pts)
	return slices.Compact(pts)
}

// End returns the latest item end.
func (p Project) End() float64 {
	end := 0.0
	for _, it := range p.Items {
		end = math.Max(end, it.Placement().End())
	}
	return end
}

// Validate checks unique non-empty IDs, positive durations and track range.
func (p Project) Validate() error {
	seen := make(map[string]bool, len(p.Items))
	for _, it := range p.Items {
		sp := it.Placement()
		if sp.ID == "" {
			return fmt.Errorf("%w: %s with empty id", ErrInvalidEdit, it.Kind())
		}
		if seen[sp.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidEdit, sp.ID)
		}
		seen[sp.ID] = true
		if !(sp.Duration > 0) || sp.Start < 0 {
			return fmt.Errorf("%w: %q has start %v duration %v", ErrInvalidEdit, sp.ID, sp.Start, sp.Duration)
		}
		if p.Tracks > 0 && (sp.Track < 0 || sp.Track >= p.Tracks) {
			return fmt.Errorf("%w: %q on track %d of %d", ErrInvalidEdit, sp.ID, sp.Track, p.Tracks)
		}
	}
	return nil
}

// Move places item id at start on track. Start is clamped to >= 0 and the
// track to the project's track range.
func (p Project) Move(id string, start float64, track int) (Project, error) {
	it, i, ok := p.Find(id)
	if !ok {
		return p, fmt.Errorf("move %q: %w", id, ErrItemNotFound)
	}
	sp := it.Placement()
	sp.Start = math.Max(0, start)
	sp.Track = p.clampTrack(track)
	return p.replace(i, it.withSpan(sp)), nil
}

// Trim sets the start and duration of item id.
func (p Project) Trim(id string, start, duration float64) (Project, error) {
	it, i, ok := p.Find(id)
	if !ok {
		return p, fmt.Errorf("trim %q: %w", id, ErrItemNotFound)
	}
	if !(duration > 0) {
		return p, fmt.Errorf("trim %q: %w: duration %v", id, ErrInvalidEdit, duration)
	}
	sp := it.Placement()
	shift := math.Max(0, start) - sp.Start
	sp.Start += shift
	sp.Duration = duration
	if c, isClip := it.(Clip); isClip {
		c.In = math.Max(0, c.In+shift)
		it = c
	}
	return p.replace(i, it.withSpan(sp)), nil
}

// Add appends a new item.
func (p Project) Add(it Item) (Project, error) {
	sp := it.Placement()
	if sp.ID == "" {
		return p, fmt.Errorf("add: %w: empty id", ErrInvalidEdit)
	}
	if _, _, exists := p.Find(sp.ID); exists {
		return p, fmt.Errorf("add %q: %w: id already used", sp.ID, ErrInvalidEdit)
	}
	if !(sp.Duration > 0) {
		return p, fmt.Errorf("add %q: %w: duration %v", sp.ID, ErrInvalidEdit, sp.Duration)
	}
	sp.Start = math.Max(0, sp.Start)
	sp.Track = p.clampTrack(sp.Track)

	next := p.Clone()
	next.Items = append(next.Items, it.withSpan(sp))
	next.Duration = math.Max(next.Duration, sp.End())
	return next, nil
}

// Remove deletes item id.
func (p Project) Remove(id string) (Project, error) {
	_, i, ok := p.Find(id)
	if !ok {
		return p, fmt.Errorf("remove %q: %w", id, ErrItemNotFound)
	}
	next := p.Clone()
	next.Items = slices.Delete(next.Items, i, i+1)
	return next, nil
}

// Split cuts item id at time at. The left part keeps id; the right part
// is named newID. Transitions cannot be split.
func (p Project) Split(id string, at float64, newID string) (Project, error) {
	it, i, ok := p.Find(id)
	if !ok {
		return p, fmt.Errorf("split %q: %w", id, ErrItemNotFound)
	}
	sp := it.Placement()
	if at <= sp.Start || at >= sp.End() {
		return p, fmt.Errorf("split %q: %w: %v outside (%v, %v)", id, ErrInvalidEdit, at, sp.Start, sp.End())
	}
	if _, _, exists := p.Find(newID); exists || newID == "" {
		return p, fmt.Errorf("split %q: %w: bad new id %q", id, ErrInvalidEdit, newID)
	}

	left := sp
	left.Duration = at - sp.Start
	right := sp
	right.ID = newID
	right.Start = at
	right.Duration = sp.End() - at

	var second Item
	switch v := it.(type) {
	case Clip:
		v.In += left.Duration
		second = v.withSpan(right)
	case AudioTrack:
		second = v.withSpan(right)
	case Transition:
		return p, fmt.Errorf("split %q: %w: transitions cannot be split", id, ErrInvalidEdit)
	default:
		panic(fmt.Sprintf("timeline: unknown item type %T", it))
	}

	next := p.replace(i, it.withSpan(left))
	next.Items = slices.Insert(next.Items, i+1, second)
	return next, nil
}

// AddMarker inserts a marker at t (clamped to >= 0), keeping markers sorted
// and unique.
func (p Project) AddMarker(t float64) Project {
	t = math.Max(0, t)
	next := p.Clone()
	i, found := slices.BinarySearch(next.Markers, t)
	if !found {
		next.Markers = slices.Insert(next.Markers, i, t)
	}
	return next
}

func (p Project) replace(i int, it Item) Project {
	next := p.Clone()
	next.Items[i] = it
	next.Duration = math.Max(next.Duration, it.Placement().End())
	return next
}

func (p Project) clampTrack(track int) int {
	if p.Tracks <= 0 {
		return max(track, 0)
	}
	return min(max(track, 0), p.Tracks-1)
}
