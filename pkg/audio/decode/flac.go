// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC assets frame by frame with mewkiz/flac
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC(format audio.Format) (Decoder, error) {
	if format.Codec != "flac" {
		return nil, fmt.Errorf("invalid codec for FLAC decoder: %s", format.Codec)
	}
	return &FLACDecoder{}, nil
}

// Decode converts FLAC bytes to a mono buffer
func (d *FLACDecoder) Decode(data []byte) (audio.Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	bitDepth := int(stream.Info.BitsPerSample)
	channels := max(int(stream.Info.NChannels), 1)
	samples := make([]float32, 0, stream.Info.NSamples)

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("flac frame error: %w", err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float32
			for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
				sum += audio.SampleFromInt(int(frame.Subframes[ch].Samples[i]), bitDepth)
			}
			samples = append(samples, sum/float32(channels))
		}
	}

	return audio.Buffer{Samples: samples, SampleRate: int(stream.Info.SampleRate)}, nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return nil
}
