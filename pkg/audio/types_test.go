// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion and downmix functions
package audio

import "testing"

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16Clips(t *testing.T) {
	if got := SampleToInt16(2); got != 32767 {
		t.Errorf("expected 32767, got %d", got)
	}
	if got := SampleToInt16(-2); got != -32767 {
		t.Errorf("expected -32767, got %d", got)
	}
}

func Test24BitRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input [3]byte
	}{
		{"zero", [3]byte{0, 0, 0}},
		{"positive", [3]byte{0x40, 0x42, 0x0F}},
		{"negative", [3]byte{0xC0, 0xBD, 0xF0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := SampleFrom24Bit(tt.input)
			if f < -1 || f > 1 {
				t.Fatalf("expected value in [-1,1], got %f", f)
			}
			back := SampleTo24Bit(f)
			diff := int(back[0]) - int(tt.input[0])
			if back[1] != tt.input[1] || back[2] != tt.input[2] || diff < -1 || diff > 1 {
				t.Errorf("expected %v, got %v", tt.input, back)
			}
		})
	}
}

func TestSampleFromIntBitDepths(t *testing.T) {
	if got := SampleFromInt(1<<23, 24); got != 1 {
		t.Errorf("expected 1, got %f", got)
	}
	if got := SampleFromInt(-(1 << 15), 16); got != -1 {
		t.Errorf("expected -1, got %f", got)
	}
}

func TestDownmix(t *testing.T) {
	out := Downmix([]float32{1, 0, 0.5, 0.5, -1, -1}, 2)
	expected := []float32{0.5, 0.5, -1}
	if len(out) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("frame %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestBufferDuration(t *testing.T) {
	b := Buffer{Samples: make([]float32, 22050), SampleRate: 44100}
	if b.Duration() != 0.5 {
		t.Errorf("expected 0.5, got %f", b.Duration())
	}
	if (Buffer{}).Duration() != 0 {
		t.Error("expected zero duration for empty buffer")
	}
}
