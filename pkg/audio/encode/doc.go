// ABOUTME: Audio encoder package for exporting finished layers
// ABOUTME: Provides Encoder interface and implementations for raw float, Opus and WAV
// Package encode serialises mono float buffers.
//
// Supports: raw float32 (the layer storage format), length-prefixed Opus
// packet streams at 48 kHz, and WAV files via go-audio/wav.
//
// Example:
//
//	encoder, err := encode.New(audio.Format{Codec: "opus"})
//	data, err := encoder.Encode(buf)
package encode
