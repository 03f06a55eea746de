package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBindings(t *testing.T) {
	d := New()
	tests := []struct {
		key  Key
		want Command
	}{
		{Key{Name: "z", Ctrl: true}, CommandUndo},
		{Key{Name: "Z", Meta: true}, CommandUndo},
		{Key{Name: "z", Ctrl: true, Shift: true}, CommandRedo},
		{Key{Name: "y", Ctrl: true}, CommandRedo},
		{Key{Name: "Delete"}, CommandRemove},
		{Key{Name: "Backspace"}, CommandRemove},
		{Key{Name: "s"}, CommandSplit},
		{Key{Name: "m"}, CommandAddMarker},
		{Key{Name: "+"}, CommandZoomIn},
		{Key{Name: "-"}, CommandZoomOut},
		{Key{Name: "Escape"}, CommandCancelDrag},
	}
	for _, tt := range tests {
		t.Run(tt.key.Chord(), func(t *testing.T) {
			got, ok := d.Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := d.Lookup(Key{Name: "s", Ctrl: true})
	assert.False(t, ok)
}

func TestParseChord(t *testing.T) {
	k, err := ParseChord("Cmd+Shift+Z")
	require.NoError(t, err)
	assert.Equal(t, Key{Name: "z", Ctrl: true, Shift: true}, k)
	assert.Equal(t, "ctrl+shift+z", k.Chord())

	k, err = ParseChord("ctrl++")
	require.NoError(t, err)
	assert.Equal(t, "ctrl++", k.Chord())

	_, err = ParseChord("hyper+x")
	assert.Error(t, err)
	_, err = ParseChord("ctrl+")
	assert.Error(t, err)
}

func TestBindAndUnbind(t *testing.T) {
	d := New()
	require.NoError(t, d.Bind("alt+s", CommandSplit))
	got, ok := d.Lookup(Key{Name: "s", Alt: true})
	require.True(t, ok)
	assert.Equal(t, CommandSplit, got)

	require.NoError(t, d.Unbind("s"))
	_, ok = d.Lookup(Key{Name: "s"})
	assert.False(t, ok)
	assert.Contains(t, d.Chords(), "alt+s")
	assert.Error(t, d.Bind("nope+q", CommandUndo))
}
