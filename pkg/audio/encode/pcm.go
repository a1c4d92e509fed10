// ABOUTME: Raw float encoder
// ABOUTME: Writes mono float samples as headerless little-endian float32
package encode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/choirless/rehearsal/pkg/audio"
)

// RawEncoder writes little-endian float32 samples
type RawEncoder struct{}

// NewRaw creates a raw float encoder
func NewRaw(format audio.Format) (Encoder, error) {
	if format.Codec != "f32" {
		return nil, fmt.Errorf("invalid codec for raw encoder: %s", format.Codec)
	}
	return &RawEncoder{}, nil
}

// Encode converts samples to float32 bytes
func (e *RawEncoder) Encode(buf audio.Buffer) ([]byte, error) {
	out := make([]byte, len(buf.Samples)*4)
	for i, s := range buf.Samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out, nil
}

// Close releases resources
func (e *RawEncoder) Close() error {
	return nil
}
