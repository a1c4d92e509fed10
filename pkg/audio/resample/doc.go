// ABOUTME: Sample rate conversion package
// ABOUTME: Provides a linear interpolation resampler for mono float audio
// Package resample converts mono float audio between sample rates.
//
// Assets arrive at whatever rate they were authored at; the engine runs at
// 44.1 kHz and Opus layer streams at 48 kHz. The Resampler keeps its
// fractional position between calls so long inputs can be fed in chunks.
//
// Example:
//
//	engineBuf := resample.Buffer(assetBuf, audio.DefaultSampleRate)
package resample
