package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSnapJSON(t *testing.T, args ...string) SnapResult {
	t.Helper()
	cmd := NewSnapCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, args...)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SnapResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestSnapResolvesAgainstGrid(t *testing.T) {
	res := runSnapJSON(t, "--analysis", "testdata/beats.yaml", "1.02", "1.95", "3.3")

	assert.InDelta(t, 100, res.PixelsPerSecond, 1e-9)
	// 120 BPM at half strength is below the 10px floor at 100 px/s.
	assert.InDelta(t, 0.1, res.Tolerance, 1e-9)
	assert.Positive(t, res.Candidates)
	require.Len(t, res.Resolutions, 3)

	assert.Equal(t, SnapResolution{Raw: 1.02, Time: 1, Snapped: true, Kind: "beat"}, res.Resolutions[0])
	assert.Equal(t, SnapResolution{Raw: 1.95, Time: 2, Snapped: true, Kind: "bar"}, res.Resolutions[1])
	assert.InDelta(t, 3.25, res.Resolutions[2].Time, 1e-9)
	assert.Equal(t, "subdivision", res.Resolutions[2].Kind)
}

func TestSnapZoomNarrowsTolerance(t *testing.T) {
	wide := runSnapJSON(t, "--analysis", "testdata/beats.yaml", "1")
	narrow := runSnapJSON(t, "--analysis", "testdata/beats.yaml", "--zoom", "4", "1")

	assert.InDelta(t, 400, narrow.PixelsPerSecond, 1e-9)
	assert.Less(t, narrow.Tolerance, wide.Tolerance)
}

func TestSnapProjectMarkers(t *testing.T) {
	// The marker at 30.06s sits between two subdivisions.
	res := runSnapJSON(t, "--analysis", "testdata/beats.yaml", "--project", "testdata/project.yaml", "30.07")
	require.Len(t, res.Resolutions, 1)
	assert.True(t, res.Resolutions[0].Snapped)
	assert.InDelta(t, 30.06, res.Resolutions[0].Time, 1e-9)
	assert.Equal(t, "custom", res.Resolutions[0].Kind)
}

func TestSnapTextOutput(t *testing.T) {
	cmd := NewSnapCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, "--analysis", "testdata/beats.yaml", "1.02")
	require.NoError(t, err)
	assert.Contains(t, out, "100 px/s, tolerance 0.100s")
	assert.Contains(t, out, "1.020 -> 1.000 (beat)")
}

func TestSnapErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing analysis flag", []string{"1"}, "required flag"},
		{"no times", []string{"--analysis", "testdata/beats.yaml"}, "requires at least 1 arg"},
		{"bad time", []string{"--analysis", "testdata/beats.yaml", "soon"}, `invalid time "soon"`},
		{"bad zoom", []string{"--analysis", "testdata/beats.yaml", "--zoom", "0", "1"}, "invalid zoom"},
		{"missing analysis", []string{"--analysis", "testdata/nope.yaml", "1"}, "failed to load analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewSnapCommand(&RootOptions{Format: "text"})
			_, err := execute(t, cmd, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
