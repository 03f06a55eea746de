package cli

import (
	"encoding/json"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTone writes a mono 16-bit sine of n frames.
func writeTone(t *testing.T, path string, rate, n int) {
	t.Helper()
	i := 0
	gen := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for k := range samples {
			v := 0.6 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
			samples[k][0], samples[k][1] = v, v
			i++
		}
		return len(samples), true
	})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(n, gen), format))
}

func TestWaveformWritesPNG(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "tone.wav"), 8000, 32000)
	out := filepath.Join(dir, "a1.png")

	cmd := NewWaveformCommand(&RootOptions{Format: "json"})
	stdout, err := execute(t, cmd, "testdata/project.yaml", "a1",
		"-o", out, "--audio-dir", dir, "--width", "200", "--height", "40",
		"--analysis", "testdata/beats.yaml", "--beats", "--style", "filled")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   WaveformResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "a1", resp.Data.Item)
	assert.Equal(t, "tone.wav", resp.Data.Source)
	assert.Equal(t, 200, resp.Data.Width)
	assert.Equal(t, 40, resp.Data.Height)
	assert.Equal(t, int64(200*40*4), resp.Data.Bytes)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestWaveformTextOutput(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "tone.wav"), 8000, 8000)
	out := filepath.Join(dir, "a1.png")

	cmd := NewWaveformCommand(&RootOptions{Format: "text"})
	stdout, err := execute(t, cmd, "testdata/project.yaml", "a1", "-o", out, "--audio-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ a1: 800x120 waveform written to")
	assert.FileExists(t, out)
}

func TestWaveformErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.png")

	tests := []struct {
		name string
		args []string
		want string
		code int
	}{
		{"missing output flag", []string{"testdata/project.yaml", "a1"}, "required flag", ExitFailure},
		{"not audio", []string{"testdata/project.yaml", "c1", "-o", out, "--audio-dir", dir}, "not audio", ExitFailure},
		{"unknown item", []string{"testdata/project.yaml", "zz", "-o", out, "--audio-dir", dir}, "not found", ExitFailure},
		{"missing audio", []string{"testdata/project.yaml", "a1", "-o", out, "--audio-dir", dir}, "open audio", ExitFailure},
		{"bad project", []string{"testdata/invalid_project.yaml", "a1", "-o", out}, "failed to load project", ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewWaveformCommand(&RootOptions{Format: "text"})
			_, err := execute(t, cmd, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
	assert.NoFileExists(t, out)
}
