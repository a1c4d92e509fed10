// ABOUTME: Tests for layer encoders
// ABOUTME: Checks raw float layout, Opus framing and WAV output
package encode

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/choirless/rehearsal/pkg/audio"
)

func TestNewRejectsUnknownCodec(t *testing.T) {
	if _, err := New(audio.Format{Codec: "aac"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
	if _, err := NewRaw(audio.Format{Codec: "pcm"}); err == nil || !strings.Contains(err.Error(), "invalid codec") {
		t.Errorf("expected invalid codec error, got %v", err)
	}
}

func TestRawEncodeLayout(t *testing.T) {
	enc, err := NewRaw(audio.Format{Codec: "f32"})
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	data, err := enc.Encode(audio.Buffer{Samples: []float32{0.5, -1}, SampleRate: 44100})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(data))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[4:])); got != -1 {
		t.Errorf("expected -1, got %f", got)
	}
}

func TestOpusEncodeFraming(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: "opus"})
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	defer enc.Close()

	// 50ms at 48kHz is two full frames plus a padded third
	samples := make([]float32, 2400)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	data, err := enc.Encode(audio.Buffer{Samples: samples, SampleRate: 48000})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	packets := 0
	for off := 0; off < len(data); {
		size := int(binary.BigEndian.Uint16(data[off:]))
		off += 2 + size
		packets++
	}
	if packets != 3 {
		t.Errorf("expected 3 packets, got %d", packets)
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	buf := audio.Buffer{Samples: make([]float32, 441), SampleRate: 44100}
	if err := WriteWAV(f, buf, 16); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	_ = f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Errorf("expected RIFF/WAVE header, got %q", data[0:12])
	}
	if expected := 44 + 441*2; len(data) != expected {
		t.Errorf("expected %d bytes, got %d", expected, len(data))
	}

	if err := WriteWAV(f, buf, 8); err == nil {
		t.Error("expected error for 8-bit output")
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{"opus": ".opus", "wav": ".wav", "f32": ".raw"}
	for codec, expected := range tests {
		if got := Extension(codec); got != expected {
			t.Errorf("%s: expected %s, got %s", codec, expected, got)
		}
	}
}
