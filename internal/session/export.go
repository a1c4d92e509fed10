// ABOUTME: Writes finished layers to disk
// ABOUTME: Raw float, WAV or Opus packet stream named by layer id
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/choirless/rehearsal/pkg/audio/encode"
)

// exportLayer writes layer into dir and returns the file path.
func exportLayer(dir, format string, layer Layer) (string, error) {
	if format == "" {
		format = "f32"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := filepath.Join(dir, layer.ID+encode.Extension(format))
	buf := audio.Buffer{Samples: layer.Samples, SampleRate: layer.SampleRate}

	if format == "wav" {
		f, err := os.Create(name)
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", name, err)
		}
		if err := encode.WriteWAV(f, buf, 16); err != nil {
			_ = f.Close()
			return "", err
		}
		return name, f.Close()
	}

	enc, err := encode.New(audio.Format{Codec: format, SampleRate: layer.SampleRate, Channels: 1})
	if err != nil {
		return "", err
	}
	defer func() { _ = enc.Close() }()

	data, err := enc.Encode(buf)
	if err != nil {
		return "", fmt.Errorf("failed to encode layer: %w", err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}
