// ABOUTME: Tests for waveform rendering
// ABOUTME: Checks image sizing, column scaling and PNG output
package waveform

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/choirless/rehearsal/pkg/audio"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		duration float64
		expected int
	}{
		{0, 1}, {1, 20}, {2.5, 50}, {0.01, 1},
	}
	for _, tt := range tests {
		if got := Width(tt.duration); got != tt.expected {
			t.Errorf("duration %f: expected %d, got %d", tt.duration, tt.expected, got)
		}
	}
}

func TestColumnsScaleAndClip(t *testing.T) {
	samples := make([]float32, 8)
	for i := 0; i < 4; i++ {
		samples[i] = 0.35
	}
	for i := 4; i < 8; i++ {
		samples[i] = 1
	}
	cols := Columns(samples, 2)
	if cols[0] < 0.499 || cols[0] > 0.501 {
		t.Errorf("expected 0.5, got %f", cols[0])
	}
	if cols[1] != 1 {
		t.Errorf("expected clip to 1, got %f", cols[1])
	}
}

func TestPNGDimensions(t *testing.T) {
	buf := audio.Buffer{Samples: make([]float32, 44100), SampleRate: 44100}
	data, err := PNG(buf)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != DefaultHeight {
		t.Errorf("expected 20x%d, got %v", DefaultHeight, img.Bounds())
	}
}

func TestRenderDrawsCentredBar(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.7
	}
	img := Render(audio.Buffer{Samples: samples, SampleRate: 100}, 1, 10)
	if img.NRGBAAt(0, 0).A == 0 || img.NRGBAAt(0, 9).A == 0 {
		t.Error("expected full-height bar")
	}
}
