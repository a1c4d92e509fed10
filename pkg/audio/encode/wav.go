// ABOUTME: WAV file encoder
// ABOUTME: Writes mono buffers as integer PCM WAV through go-audio/wav
package encode

import (
	"fmt"
	"io"

	"github.com/choirless/rehearsal/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCMFormat is the RIFF format tag for integer PCM
const wavPCMFormat = 1

// WriteWAV writes buf to w as a mono integer PCM WAV file of bitDepth bits.
func WriteWAV(w io.WriteSeeker, buf audio.Buffer, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	enc := wav.NewEncoder(w, buf.SampleRate, bitDepth, 1, wavPCMFormat)

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = audio.SampleToInt(s, bitDepth)
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalise wav: %w", err)
	}
	return nil
}
