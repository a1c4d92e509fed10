// ABOUTME: Opus audio decoder
// ABOUTME: Decodes length-prefixed Opus packet streams to mono float samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/choirless/rehearsal/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusSampleRate is the rate layer packet streams are encoded at.
const OpusSampleRate = 48000

// maxOpusFrame is the largest frame Opus can produce (120ms at 48kHz)
const maxOpusFrame = 5760

// OpusDecoder decodes a sequence of Opus packets, each prefixed with its
// big-endian uint16 length.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	rate := format.SampleRate
	if rate == 0 {
		rate = OpusSampleRate
	}
	dec, err := opus.NewDecoder(rate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{decoder: dec, sampleRate: rate}, nil
}

// Decode converts a packet stream to a mono buffer
func (d *OpusDecoder) Decode(data []byte) (audio.Buffer, error) {
	pcm := make([]float32, maxOpusFrame)
	var samples []float32

	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return audio.Buffer{}, fmt.Errorf("truncated opus packet header at %d", off)
		}
		size := int(binary.BigEndian.Uint16(data[off:]))
		off += 2
		if off+size > len(data) {
			return audio.Buffer{}, fmt.Errorf("truncated opus packet at %d", off)
		}

		n, err := d.decoder.DecodeFloat32(data[off:off+size], pcm)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("opus decode failed: %w", err)
		}
		samples = append(samples, pcm[:n]...)
		off += size
	}

	return audio.Buffer{Samples: samples, SampleRate: d.sampleRate}, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
