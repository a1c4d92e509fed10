// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all layer encoders
package encode

import (
	"fmt"

	"github.com/choirless/rehearsal/pkg/audio"
)

// Encoder encodes a mono buffer to bytes
type Encoder interface {
	// Encode converts a complete buffer to encoded audio data
	Encode(buf audio.Buffer) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New returns the encoder for format.Codec.
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "f32":
		return NewRaw(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %q", format.Codec)
	}
}

// Extension returns the file extension used for codec.
func Extension(codec string) string {
	switch codec {
	case "opus":
		return ".opus"
	case "wav":
		return ".wav"
	default:
		return ".raw"
	}
}
