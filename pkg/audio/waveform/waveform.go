// ABOUTME: RMS waveform rendering for loaded items
// ABOUTME: Draws one centred translucent bar per column and encodes PNG
// Package waveform renders RMS overview images of mono audio.
package waveform

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/choirless/rehearsal/pkg/audio"
)

const (
	// PixelsPerSecond is the horizontal resolution of item images
	PixelsPerSecond = 20

	// DefaultHeight is the image height in pixels
	DefaultHeight = 70

	// fullScale is the RMS value drawn as a full-height bar
	fullScale = 0.7
)

var barColor = color.NRGBA{A: 128}

// Width returns the image width for an item of duration seconds.
func Width(duration float64) int {
	return max(int(math.Ceil(duration*PixelsPerSecond)), 1)
}

// Columns computes one normalised RMS value per image column. Values are
// scaled so fullScale maps to 1 and clipped there.
func Columns(samples []float32, width int) []float32 {
	if width <= 0 {
		return nil
	}
	cols := make([]float32, width)
	window := len(samples) / width
	if window == 0 {
		return cols
	}
	for i := 0; i < width; i++ {
		start := i * len(samples) / width
		v := audio.RMS(samples[start:start+window]) / fullScale
		cols[i] = min(v, 1)
	}
	return cols
}

// Render draws the RMS image of buf.
func Render(buf audio.Buffer, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	mid := float64(height) / 2
	for x, v := range Columns(buf.Samples, width) {
		half := float64(v) * mid
		top := int(math.Round(mid - half))
		bottom := int(math.Round(mid + half))
		for y := top; y < bottom; y++ {
			img.SetNRGBA(x, y, barColor)
		}
	}
	return img
}

// PNG renders buf at PixelsPerSecond and DefaultHeight and encodes it.
func PNG(buf audio.Buffer) ([]byte, error) {
	img := Render(buf, Width(buf.Duration()), DefaultHeight)
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode waveform png: %w", err)
	}
	return out.Bytes(), nil
}
