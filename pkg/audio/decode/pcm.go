// ABOUTME: Raw float and integer PCM decoders
// ABOUTME: Decodes headerless little-endian audio to mono float samples
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/choirless/rehearsal/pkg/audio"
)

// RawDecoder decodes headerless little-endian float32 samples, the format
// finished layers are stored in.
type RawDecoder struct {
	sampleRate int
	channels   int
}

// NewRaw creates a raw float32 decoder
func NewRaw(format audio.Format) (Decoder, error) {
	if format.Codec != "f32" {
		return nil, fmt.Errorf("invalid codec for raw decoder: %s", format.Codec)
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("raw float audio needs a sample rate")
	}
	return &RawDecoder{sampleRate: format.SampleRate, channels: max(format.Channels, 1)}, nil
}

// Decode converts float32 bytes to a mono buffer
func (d *RawDecoder) Decode(data []byte) (audio.Buffer, error) {
	if len(data)%4 != 0 {
		return audio.Buffer{}, fmt.Errorf("raw float data length %d is not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return audio.Buffer{Samples: audio.Downmix(samples, d.channels), SampleRate: d.sampleRate}, nil
}

// Close releases resources
func (d *RawDecoder) Close() error {
	return nil
}

// PCMDecoder decodes interleaved integer PCM audio
type PCMDecoder struct {
	bitDepth   int
	sampleRate int
	channels   int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth:   format.BitDepth,
		sampleRate: format.SampleRate,
		channels:   max(format.Channels, 1),
	}, nil
}

// Decode converts PCM bytes to a mono buffer
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	var samples []float32
	if d.bitDepth == 24 {
		samples = make([]float32, len(data)/3)
		for i := range samples {
			samples[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		}
	} else {
		samples = make([]float32, len(data)/2)
		for i := range samples {
			samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	}
	return audio.Buffer{Samples: audio.Downmix(samples, d.channels), SampleRate: d.sampleRate}, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
