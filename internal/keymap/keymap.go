// Package keymap maps keyboard chords to editor commands.
package keymap

import (
	"fmt"
	"slices"
	"strings"
)

// Command is an editor action triggered from the keyboard.
type Command string

const (
	CommandUndo       Command = "undo"
	CommandRedo       Command = "redo"
	CommandRemove     Command = "remove"
	CommandSplit      Command = "split"
	CommandAddMarker  Command = "marker"
	CommandZoomIn     Command = "zoom_in"
	CommandZoomOut    Command = "zoom_out"
	CommandCancelDrag Command = "cancel_drag"
)

// Key is a key press with modifiers.
type Key struct {
	Name  string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Chord returns the normalized chord string, e.g. "ctrl+shift+z".
// Meta is folded into ctrl so one table serves both platforms.
func (k Key) Chord() string {
	var parts []string
	if k.Ctrl || k.Meta {
		parts = append(parts, "ctrl")
	}
	if k.Alt {
		parts = append(parts, "alt")
	}
	if k.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, strings.ToLower(k.Name)), "+")
}

// ParseChord parses "ctrl+shift+z" style strings. "cmd" and "meta" are
// accepted for ctrl.
func ParseChord(s string) (Key, error) {
	fields := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	// "+" itself is a key name: "ctrl++" splits into ["ctrl", "", ""].
	if n := len(fields); n >= 2 && fields[n-1] == "" && fields[n-2] == "" {
		fields = append(fields[:n-2], "+")
	}
	var k Key
	for i, f := range fields {
		last := i == len(fields)-1
		switch {
		case last:
			if f == "" {
				return Key{}, fmt.Errorf("chord %q: missing key", s)
			}
			k.Name = f
		case f == "ctrl" || f == "cmd" || f == "meta":
			k.Ctrl = true
		case f == "shift":
			k.Shift = true
		case f == "alt" || f == "option":
			k.Alt = true
		default:
			return Key{}, fmt.Errorf("chord %q: unknown modifier %q", s, f)
		}
	}
	return k, nil
}

// Dispatcher is the chord to command table.
type Dispatcher struct {
	bindings map[string]Command
}

// New returns a dispatcher with the default bindings.
func New() *Dispatcher {
	d := &Dispatcher{bindings: make(map[string]Command)}
	for chord, cmd := range DefaultBindings() {
		// Defaults are known to parse.
		_ = d.Bind(chord, cmd)
	}
	return d
}

// DefaultBindings returns the built-in table.
func DefaultBindings() map[string]Command {
	return map[string]Command{
		"ctrl+z":       CommandUndo,
		"ctrl+shift+z": CommandRedo,
		"ctrl+y":       CommandRedo,
		"delete":       CommandRemove,
		"backspace":    CommandRemove,
		"s":            CommandSplit,
		"m":            CommandAddMarker,
		"+":            CommandZoomIn,
		"=":            CommandZoomIn,
		"-":            CommandZoomOut,
		"escape":       CommandCancelDrag,
	}
}

// Bind maps chord to cmd, replacing any existing binding.
func (d *Dispatcher) Bind(chord string, cmd Command) error {
	k, err := ParseChord(chord)
	if err != nil {
		return err
	}
	d.bindings[k.Chord()] = cmd
	return nil
}

// Unbind removes a chord.
func (d *Dispatcher) Unbind(chord string) error {
	k, err := ParseChord(chord)
	if err != nil {
		return err
	}
	delete(d.bindings, k.Chord())
	return nil
}

// Lookup returns the command bound to k.
func (d *Dispatcher) Lookup(k Key) (Command, bool) {
	cmd, ok := d.bindings[k.Chord()]
	return cmd, ok
}

// Chords returns the bound chords, sorted.
func (d *Dispatcher) Chords() []string {
	out := make([]string, 0, len(d.bindings))
	for c := range d.bindings {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
