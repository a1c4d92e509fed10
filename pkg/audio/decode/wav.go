// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE assets through go-audio/wav
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes WAV files
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV(format audio.Format) (Decoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV decoder: %s", format.Codec)
	}
	return &WAVDecoder{}, nil
}

// Decode converts a WAV file to a mono buffer
func (d *WAVDecoder) Decode(data []byte) (audio.Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return audio.Buffer{}, errors.New("invalid wav file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("read wav samples: %w", err)
	}
	if pcm == nil || pcm.Format == nil {
		return audio.Buffer{}, errors.New("wav file has no format")
	}

	bitDepth := int(dec.BitDepth)
	channels := max(pcm.Format.NumChannels, 1)
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = audio.SampleFromInt(v, bitDepth)
	}

	return audio.Buffer{
		Samples:    audio.Downmix(samples, channels),
		SampleRate: pcm.Format.SampleRate,
	}, nil
}

// Close releases resources
func (d *WAVDecoder) Close() error {
	return nil
}
