// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 assets to mono float samples
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3(format audio.Format) (Decoder, error) {
	if format.Codec != "mp3" {
		return nil, fmt.Errorf("invalid codec for MP3 decoder: %s", format.Codec)
	}
	return &MP3Decoder{}, nil
}

// Decode converts MP3 bytes to a mono buffer
func (d *MP3Decoder) Decode(data []byte) (audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	frames := len(pcm) / 4
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		right := audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		samples[i] = (left + right) / 2
	}

	return audio.Buffer{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
