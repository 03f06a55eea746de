package waveform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)


func TestRenderBarsFullScale(t *testing.T) {
	img, err := Render(RenderConfig{
		Width: 6, Height: 9, Color: "#ff0000", Style: StyleBars,
		Samples: []float32{1, -1, 1, -1, 1, -1},
	})
	require.NoError(t, err)

	// Column 0 is a full-height bar, column 2 is a gap.
	for y := 0; y < 9; y++ {
		assert.Equal(t, uint8(255), img.RGBAAt(0, y).A, "y=%d", y)
		assert.Equal(t, uint8(255), img.RGBAAt(0, y).R)
		assert.Zero(t, img.RGBAAt(2, y).A)
	}
}

func TestRenderSilenceLineIsCentred(t *testing.T) {
	img, err := Render(RenderConfig{
		Width: 4, Height: 5, Color: "#0000ff", Style: StyleLine,
		Samples: make([]float32, 40),
	})
	require.NoError(t, err)
	for x := 0; x < 4; x++ {
		assert.Equal(t, uint8(255), img.RGBAAt(x, 2).A)
		assert.Zero(t, img.RGBAAt(x, 0).A)
	}
}

func TestRenderFilledFadesTowardsCentre(t *testing.T) {
	img, err := Render(RenderConfig{
		Width: 1, Height: 11, Color: "#ffffff", Style: StyleFilled,
		Samples: []float32{1},
	})
	require.NoError(t, err)
	edge := img.RGBAAt(0, 0).A
	centre := img.RGBAAt(0, 5).A
	assert.Equal(t, uint8(255), edge)
	assert.Less(t, centre, edge)
	assert.NotZero(t, centre)
}

func TestRenderBeatOverlay(t *testing.T) {
	img, err := Render(RenderConfig{
		Width: 11, Height: 4, Color: "#000000", Style: StyleBars,
		ShowBeats: true, Duration: 10, BeatTimes: []float64{5, 20, -1},
	})
	require.NoError(t, err)
	px := img.RGBAAt(5, 0)
	assert.Equal(t, uint8(255), px.A)
	assert.Greater(t, px.R, uint8(100), "beat line blended towards white")
	assert.Zero(t, img.RGBAAt(4, 0).A)
}
