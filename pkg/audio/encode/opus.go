// ABOUTME: Opus audio encoder
// ABOUTME: Encodes mono buffers to length-prefixed 20ms Opus packets
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/choirless/rehearsal/pkg/audio/resample"
	"gopkg.in/hraban/opus.v2"
)

const (
	// OpusSampleRate is the rate packets are encoded at
	OpusSampleRate = 48000

	// 20ms frames
	opusFrameSize = OpusSampleRate / 50

	maxOpusPacket = 4000
)

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder *opus.Encoder
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	if format.BitDepth > 0 && format.BitDepth != 16 {
		return nil, fmt.Errorf("opus encodes 16-bit equivalent audio, got bit depth %d", format.BitDepth)
	}

	encoder, err := opus.NewEncoder(OpusSampleRate, 1, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{encoder: encoder}, nil
}

// Encode resamples buf to 48kHz and writes each packet prefixed with its
// big-endian uint16 length. The last frame is zero padded.
func (e *OpusEncoder) Encode(buf audio.Buffer) ([]byte, error) {
	src := resample.Buffer(buf, OpusSampleRate)

	var out []byte
	frame := make([]float32, opusFrameSize)
	packet := make([]byte, maxOpusPacket)
	for start := 0; start < len(src.Samples); start += opusFrameSize {
		n := copy(frame, src.Samples[start:])
		clear(frame[n:])

		size, err := e.encoder.EncodeFloat32(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode error: %w", err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(size))
		out = append(out, packet[:size]...)
	}

	return out, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
