package timeline

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Record is the flat wire form of an Item, discriminated by Kind.
type Record struct {
	Kind     Kind    `json:"kind" yaml:"kind"`
	ID       string  `json:"id" yaml:"id"`
	Track    int     `json:"track" yaml:"track"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
	Source   string  `json:"source,omitempty" yaml:"source,omitempty"`
	In       float64 `json:"in,omitempty" yaml:"in,omitempty"`
	Gain     float64 `json:"gain,omitempty" yaml:"gain,omitempty"`
	Style    string  `json:"style,omitempty" yaml:"style,omitempty"`
	From     string  `json:"from,omitempty" yaml:"from,omitempty"`
	To       string  `json:"to,omitempty" yaml:"to,omitempty"`
}

// ToRecord flattens an item.
func ToRecord(it Item) Record {
	sp := it.Placement()
	r := Record{Kind: it.Kind(), ID: sp.ID, Track: sp.Track, Start: sp.Start, Duration: sp.Duration}
	switch v := it.(type) {
	case Clip:
		r.Source, r.In = v.Source, v.In
	case AudioTrack:
		r.Source, r.Gain = v.Source, v.Gain
	case Transition:
		r.Style, r.From, r.To = v.Style, v.From, v.To
	default:
		panic(fmt.Sprintf("timeline: unknown item type %T", it))
	}
	return r
}

// Item converts the record back into its variant.
func (r Record) Item() (Item, error) {
	sp := Span{ID: r.ID, Track: r.Track, Start: r.Start, Duration: r.Duration}
	switch r.Kind {
	case KindClip:
		return Clip{Span: sp, Source: r.Source, In: r.In}, nil
	case KindAudio:
		return AudioTrack{Span: sp, Source: r.Source, Gain: r.Gain}, nil
	case KindTransition:
		return Transition{Span: sp, Style: r.Style, From: r.From, To: r.To}, nil
	default:
		return nil, fmt.Errorf("item %q: unknown kind %q", r.ID, r.Kind)
	}
}

type projectFile struct {
	Name     string    `json:"name" yaml:"name"`
	Duration float64   `json:"duration" yaml:"duration"`
	Tracks   int       `json:"tracks" yaml:"tracks"`
	Items    []Record  `json:"items" yaml:"items"`
	Markers  []float64 `json:"markers" yaml:"markers"`
}

func (p Project) toFile() projectFile {
	f := projectFile{
		Name:     p.Name,
		Duration: p.Duration,
		Tracks:   p.Tracks,
		Items:    make([]Record, 0, len(p.Items)),
		Markers:  p.Markers,
	}
	if f.Markers == nil {
		f.Markers = []float64{}
	}
	for _, it := range p.Items {
		f.Items = append(f.Items, ToRecord(it))
	}
	return f
}

func (f projectFile) toProject() (Project, error) {
	p := Project{Name: f.Name, Duration: f.Duration, Tracks: f.Tracks}
	if len(f.Markers) > 0 {
		sorted := slices.Clone(f.Markers)
		slices.Sort(sorted)
		p.Markers = slices.Compact(sorted)
	}
	for _, r := range f.Items {
		it, err := r.Item()
		if err != nil {
			return Project{}, err
		}
		p.Items = append(p.Items, it)
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	p.Duration = max(p.Duration, p.End())
	return p, nil
}

// MarshalJSON encodes items with a kind discriminator.
func (p Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toFile())
}

// UnmarshalJSON decodes and validates a project.
func (p *Project) UnmarshalJSON(data []byte) error {
	var f projectFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	out, err := f.toProject()
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// UnmarshalYAML decodes and validates a project.
func (p *Project) UnmarshalYAML(node *yaml.Node) error {
	var f projectFile
	if err := node.Decode(&f); err != nil {
		return err
	}
	out, err := f.toProject()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = out
	return nil
}

// LoadProject reads a project file. JSON is accepted as a YAML subset.
func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("parse project %s: %w", path, err)
	}
	return p, nil
}
