// ABOUTME: Decoder interface definition and codec selection
// ABOUTME: Picks a decoder from a format, file extension or magic bytes
package decode

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/choirless/rehearsal/pkg/audio"
)

// Decoder decodes an encoded asset to mono float samples
type Decoder interface {
	// Decode converts a complete encoded asset to a mono buffer
	Decode(data []byte) (audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}

// New returns the decoder for format.Codec.
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "f32":
		return NewRaw(format)
	case "pcm":
		return NewPCM(format)
	case "wav":
		return NewWAV(format)
	case "mp3":
		return NewMP3(format)
	case "flac":
		return NewFLAC(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %q", format.Codec)
	}
}

// DetectCodec guesses a codec from the asset name and its first bytes.
func DetectCodec(name string, data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return "flac"
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return "mp3"
	}

	ext := strings.ToLower(path.Ext(name))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".opus":
		return "opus"
	case ".pcm":
		return "pcm"
	default:
		return "f32"
	}
}

// Bytes decodes an asset whose codec is inferred from name and content.
// rate is used for headerless formats.
func Bytes(name string, data []byte, rate int) (audio.Buffer, error) {
	format := audio.Format{
		Codec:      DetectCodec(name, data),
		SampleRate: rate,
		Channels:   1,
		BitDepth:   16,
	}
	if format.Codec == "opus" {
		format.SampleRate = OpusSampleRate
	}

	dec, err := New(format)
	if err != nil {
		return audio.Buffer{}, err
	}
	defer func() { _ = dec.Close() }()

	buf, err := dec.Decode(data)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decode %s as %s: %w", name, format.Codec, err)
	}
	return buf, nil
}
