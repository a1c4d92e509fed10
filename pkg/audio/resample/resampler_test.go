// ABOUTME: Tests for the linear resampler
// ABOUTME: Covers ratios, interpolation and chunked conversion
package resample

import (
	"math"
	"testing"

	"github.com/choirless/rehearsal/pkg/audio"
)

func TestResampleSameRateIsIdentity(t *testing.T) {
	buf := audio.Buffer{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 44100}
	out := Buffer(buf, 44100)
	if len(out.Samples) != 3 || out.Samples[2] != 0.3 {
		t.Errorf("expected unchanged buffer, got %v", out.Samples)
	}
}

func TestResampleUpsampleInterpolates(t *testing.T) {
	r := New(1, 2)
	in := []float32{0, 1, 2}
	out := make([]float32, r.OutputLen(len(in)))
	n := r.Resample(in, out)

	expected := []float32{0, 0.5, 1, 1.5}
	if n != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), n)
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("index %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	buf := audio.Buffer{Samples: make([]float32, 48000), SampleRate: 48000}
	out := Buffer(buf, 44100)
	if out.SampleRate != 44100 {
		t.Errorf("expected rate 44100, got %d", out.SampleRate)
	}
	if diff := math.Abs(float64(len(out.Samples) - 44100)); diff > 2 {
		t.Errorf("expected about 44100 samples, got %d", len(out.Samples))
	}
}

func TestResampleChunksContinue(t *testing.T) {
	r := New(1, 2)
	first := make([]float32, 8)
	n1 := r.Resample([]float32{0, 1}, first)
	second := make([]float32, 8)
	n2 := r.Resample([]float32{2, 3}, second)

	got := append(first[:n1:n1], second[:n2]...)
	expected := []float32{0, 0.5, 1, 1.5, 2, 2.5}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("index %d: expected %f, got %f", i, expected[i], got[i])
		}
	}
}
