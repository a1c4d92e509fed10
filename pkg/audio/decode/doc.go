// ABOUTME: Audio decoder package for asset loading
// ABOUTME: Provides Decoder interface and implementations for raw float, PCM, WAV, MP3, FLAC, Opus
// Package decode turns encoded audio assets into mono float32 buffers.
//
// Supports: raw float32 (layer storage), PCM (16-bit and 24-bit), WAV,
// MP3, FLAC and length-prefixed Opus packet streams.
//
// All decoders implement the Decoder interface and downmix to a single
// channel, leaving resampling to the caller.
//
// Example:
//
//	decoder, err := decode.New(audio.Format{Codec: "mp3"})
//	buf, err := decoder.Decode(data)
package decode
