package timeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Project {
	return Project{
		Name:     "demo",
		Duration: 30,
		Tracks:   3,
		Items: []Item{
			Clip{Span: Span{ID: "c1", Track: 0, Start: 0, Duration: 5}, Source: "a.mp4"},
			Clip{Span: Span{ID: "c2", Track: 0, Start: 5, Duration: 5}, Source: "b.mp4", In: 1},
			Transition{Span: Span{ID: "t1", Track: 0, Start: 4.5, Duration: 1}, Style: "fade", From: "c1", To: "c2"},
			AudioTrack{Span: Span{ID: "a1", Track: 2, Start: 0, Duration: 20}, Source: "song.wav", Gain: 0.8},
		},
		Markers: []float64{8},
	}
}

func TestMoveIsCopyOnWrite(t *testing.T) {
	p := sample()
	moved, err := p.Move("c2", 12.5, 1)
	require.NoError(t, err)

	it, _, ok := moved.Find("c2")
	require.True(t, ok)
	assert.Equal(t, Span{ID: "c2", Track: 1, Start: 12.5, Duration: 5}, it.Placement())

	orig, _, _ := p.Find("c2")
	assert.Equal(t, 5.0, orig.Placement().Start)
	assert.False(t, p.Equal(moved))
}

func TestMoveClamps(t *testing.T) {
	p := sample()
	moved, err := p.Move("c1", -4, 9)
	require.NoError(t, err)
	it, _, _ := moved.Find("c1")
	assert.Equal(t, 0.0, it.Placement().Start)
	assert.Equal(t, 2, it.Placement().Track)

	moved, err = p.Move("a1", 40, 2)
	require.NoError(t, err)
	assert.Equal(t, 60.0, moved.Duration, "duration grows to cover the moved item")
}

func TestEditsReportMissingItems(t *testing.T) {
	p := sample()
	_, err := p.Move("nope", 0, 0)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = p.Remove("nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = p.Trim("nope", 0, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = p.Split("nope", 1, "x")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestTrimAdjustsClipIn(t *testing.T) {
	p := sample()
	trimmed, err := p.Trim("c2", 6, 3)
	require.NoError(t, err)
	it, _, _ := trimmed.Find("c2")
	c := it.(Clip)
	assert.Equal(t, 6.0, c.Start)
	assert.Equal(t, 3.0, c.Duration)
	assert.Equal(t, 2.0, c.In)

	_, err = p.Trim("c2", 6, 0)
	assert.ErrorIs(t, err, ErrInvalidEdit)
}

func TestAddAndRemove(t *testing.T) {
	p := sample()
	_, err := p.Add(Clip{Span: Span{ID: "c1", Duration: 1}})
	assert.ErrorIs(t, err, ErrInvalidEdit)
	_, err = p.Add(Clip{Span: Span{ID: "c9"}})
	assert.ErrorIs(t, err, ErrInvalidEdit)

	added, err := p.Add(Clip{Span: Span{ID: "c9", Track: 1, Start: 28, Duration: 4}})
	require.NoError(t, err)
	assert.Len(t, added.Items, 5)
	assert.Equal(t, 32.0, added.Duration)

	removed, err := added.Remove("c9")
	require.NoError(t, err)
	assert.Len(t, removed.Items, 4)
	assert.Len(t, added.Items, 5)
}

func TestSplit(t *testing.T) {
	p := sample()
	split, err := p.Split("c2", 7, "c2b")
	require.NoError(t, err)
	require.Len(t, split.Items, 5)

	left, i, _ := split.Find("c2")
	right, j, _ := split.Find("c2b")
	assert.Equal(t, i+1, j)
	assert.Equal(t, 2.0, left.Placement().Duration)
	assert.Equal(t, 7.0, right.Placement().Start)
	assert.Equal(t, 3.0, right.Placement().Duration)
	assert.Equal(t, 3.0, right.(Clip).In)

	_, err = p.Split("c2", 5, "x")
	assert.ErrorIs(t, err, ErrInvalidEdit)
	_, err = p.Split("t1", 5, "x")
	assert.ErrorIs(t, err, ErrInvalidEdit)
	_, err = p.Split("c2", 7, "c1")
	assert.ErrorIs(t, err, ErrInvalidEdit)
}

func TestAddMarkerSortedUnique(t *testing.T) {
	p := sample().AddMarker(3).AddMarker(8).AddMarker(-1)
	assert.Equal(t, []float64{0, 3, 8}, p.Markers)
}

func TestSnapPointsExcludeDraggedItem(t *testing.T) {
	p := sample()
	assert.Equal(t, []float64{0, 4.5, 5, 5.5, 8, 20}, p.SnapPoints("c2"))
}

func TestCloneIsDeep(t *testing.T) {
	p := sample()
	c := p.Clone()
	c.Items[0] = Clip{Span: Span{ID: "other", Duration: 1}}
	c.Markers[0] = 99
	assert.Equal(t, "c1", p.Items[0].Placement().ID)
	assert.Equal(t, 8.0, p.Markers[0])
	assert.True(t, p.Equal(p.Clone()))
}

func TestJSONDiscriminator(t *testing.T) {
	p := sample()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"transition"`)

	var back Project
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Equal(back))

	err = json.Unmarshal([]byte(`{"items":[{"kind":"title","id":"x","duration":1}]}`), &back)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestLoadProjectYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: beat edit
duration: 10
tracks: 2
markers: [4, 2, 4]
items:
  - {kind: clip, id: c1, track: 0, start: 0, duration: 3}
  - {kind: audio, id: a1, track: 1, start: 0, duration: 12, source: song.wav}
`), 0o644))

	p, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "beat edit", p.Name)
	assert.Equal(t, 12.0, p.Duration)
	assert.Equal(t, []float64{2, 4}, p.Markers)
	assert.Equal(t, KindAudio, p.Items[1].Kind())

	require.NoError(t, os.WriteFile(path, []byte("items:\n  - {kind: clip, id: c1, duration: -1}\n"), 0o644))
	_, err = LoadProject(path)
	assert.ErrorIs(t, err, ErrInvalidEdit)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "audio a1", Describe(sample().Items[3]))
}
