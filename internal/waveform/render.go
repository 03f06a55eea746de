package waveform

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
)

// RenderFunc draws a complete buffer for cfg.
type RenderFunc func(cfg RenderConfig) (*image.RGBA, error)

// beatBlend is how far beat lines are pulled from the waveform colour
// towards white.
const beatBlend = 0.6

// Render draws the waveform of cfg on a transparent background.
func Render(cfg RenderConfig) (*image.RGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := colorful.Hex(cfg.Color)
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	peaks := columnPeaks(cfg.Samples, cfg.Width)
	mid := float64(cfg.Height-1) / 2

	switch cfg.Style {
	case StyleBars:
		drawBars(img, peaks, mid, rgba(base, 1))
	case StyleLine:
		drawLine(img, peaks, mid, rgba(base, 1))
	case StyleFilled:
		drawFilled(img, peaks, mid, base)
	}

	if cfg.ShowBeats && cfg.Duration > 0 {
		line := rgba(base.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, beatBlend).Clamped(), 1)
		for _, t := range cfg.BeatTimes {
			x := int(math.Round(t / cfg.Duration * float64(cfg.Width-1)))
			if x < 0 || x >= cfg.Width {
				continue
			}
			for y := 0; y < cfg.Height; y++ {
				img.SetRGBA(x, y, line)
			}
		}
	}
	return img, nil
}

// columnPeaks returns the absolute peak of the samples falling into each
// of width columns, in [0, 1].
func columnPeaks(samples []float32, width int) []float64 {
	peaks := make([]float64, width)
	n := len(samples)
	if n == 0 {
		return peaks
	}
	for x := 0; x < width; x++ {
		lo := x * n / width
		hi := max((x+1)*n/width, lo+1)
		peak := 0.0
		for _, s := range samples[lo:min(hi, n)] {
			peak = math.Max(peak, math.Abs(float64(s)))
		}
		peaks[x] = math.Min(peak, 1)
	}
	return peaks
}

func drawBars(img *image.RGBA, peaks []float64, mid float64, c color.RGBA) {
	for x, p := range peaks {
		if x%3 == 2 {
			continue
		}
		ext := p * mid
		fillColumn(img, x, int(math.Round(mid-ext)), int(math.Round(mid+ext)), c)
	}
}

func drawLine(img *image.RGBA, peaks []float64, mid float64, c color.RGBA) {
	prev := -1
	for x, p := range peaks {
		y := int(math.Round(mid - p*mid))
		if prev < 0 {
			prev = y
		}
		fillColumn(img, x, min(prev, y), max(prev, y), c)
		prev = y
	}
}

// drawFilled shades each column from the centre outwards, fading in
// towards the envelope.
func drawFilled(img *image.RGBA, peaks []float64, mid float64, base colorful.Color) {
	for x, p := range peaks {
		ext := p * mid
		if ext < 0.5 {
			img.SetRGBA(x, int(math.Round(mid)), rgba(base, 0.35))
			continue
		}
		top, bottom := int(math.Round(mid-ext)), int(math.Round(mid+ext))
		for y := top; y <= bottom; y++ {
			frac := math.Min(math.Abs(float64(y)-mid)/ext, 1)
			img.SetRGBA(x, y, rgba(base, 0.35+0.65*ease.InQuad(frac)))
		}
	}
}

func fillColumn(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

// rgba converts to premultiplied RGBA at the given opacity.
func rgba(c colorful.Color, alpha float64) color.RGBA {
	r, g, b := c.RGB255()
	a := math.Round(alpha * 255)
	return color.RGBA{
		R: uint8(math.Round(float64(r) * alpha)),
		G: uint8(math.Round(float64(g) * alpha)),
		B: uint8(math.Round(float64(b) * alpha)),
		A: uint8(a),
	}
}
