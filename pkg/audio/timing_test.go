// ABOUTME: Tests for frame/second conversions
// ABOUTME: Covers the latency-to-quantum mapping and its monotonicity
package audio

import "testing"

func TestLatencyBufferCount(t *testing.T) {
	tests := []struct {
		name     string
		latency  float64
		expected int
	}{
		{"zero", 0, 0},
		{"negative", -0.2, 0},
		{"default", 0.25, 86},
		{"one quantum", 128.0 / 44100, 1},
		{"half quantum rounds up", 64.0 / 44100, 1},
		{"below half rounds down", 60.0 / 44100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatencyBufferCount(tt.latency, DefaultSampleRate)
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestLatencyBufferCountMonotonic(t *testing.T) {
	prev := 0
	for i := 0; i <= 10000; i++ {
		latency := float64(i) * 0.0001
		got := LatencyBufferCount(latency, DefaultSampleRate)
		if got < prev {
			t.Fatalf("count decreased at latency %f: %d < %d", latency, got, prev)
		}
		prev = got
	}
}

func TestSecondsFramesConversion(t *testing.T) {
	if got := SecondsToFrames(1.5, DefaultSampleRate); got != 66150 {
		t.Errorf("expected 66150, got %d", got)
	}
	if got := FramesToSeconds(44100, DefaultSampleRate); got != 1 {
		t.Errorf("expected 1, got %f", got)
	}
	if got := FramesToSeconds(10, 0); got != 0 {
		t.Errorf("expected 0 for zero rate, got %f", got)
	}
}
