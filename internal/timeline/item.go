// Package timeline is the clip model edited by a session.
//
// Items form a closed set: Clip, AudioTrack and Transition. Every consumer
// switches over the three; there is no open extension point. Items are
// plain values, so copying a Project's slices is a deep copy.
package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when an edit names an unknown item.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidEdit is returned when an edit would break a model invariant.
	ErrInvalidEdit = errors.New("invalid edit")
)

// Kind discriminates item variants on the wire.
type Kind string

const (
	KindClip       Kind = "clip"
	KindAudio      Kind = "audio"
	KindTransition Kind = "transition"
)

// Span is the placement shared by every item.
type Span struct {
	ID       string  `json:"id" yaml:"id"`
	Track    int     `json:"track" yaml:"track"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// End returns Start + Duration.
func (s Span) End() float64 {
	return s.Start + s.Duration
}

// Item is a timeline element. Implemented only by Clip, AudioTrack and
// Transition.
type Item interface {
	Kind() Kind
	Placement() Span
	withSpan(Span) Item
}

// Clip is a video clip. In is the offset into the source media.
type Clip struct {
	Span
	Source string
	In     float64
}

// AudioTrack is an audio region that owns a waveform.
type AudioTrack struct {
	Span
	Source string
	Gain   float64
}

// Transition blends the clips From and To.
type Transition struct {
	Span
	Style string
	From  string
	To    string
}

func (c Clip) Kind() Kind       { return KindClip }
func (a AudioTrack) Kind() Kind { return KindAudio }
func (t Transition) Kind() Kind { return KindTransition }

func (c Clip) Placement() Span       { return c.Span }
func (a AudioTrack) Placement() Span { return a.Span }
func (t Transition) Placement() Span { return t.Span }

func (c Clip) withSpan(s Span) Item       { c.Span = s; return c }
func (a AudioTrack) withSpan(s Span) Item { a.Span = s; return a }
func (t Transition) withSpan(s Span) Item { t.Span = s; return t }

// Describe returns a short label used in history descriptions.
func Describe(it Item) string {
	switch v := it.(type) {
	case Clip:
		return fmt.Sprintf("clip %s", v.ID)
	case AudioTrack:
		return fmt.Sprintf("audio %s", v.ID)
	case Transition:
		return fmt.Sprintf("transition %s", v.ID)
	default:
		panic(fmt.Sprintf("timeline: unknown item type %T", it))
	}
}
