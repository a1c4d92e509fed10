// ABOUTME: Audio fundamentals shared by the engine, decoders and encoders
// ABOUTME: Defines quanta, mono buffers, time conversions and buffer helpers
// Package audio provides the primitives the rehearsal engine is built on.
//
// All audio inside the engine is single-channel float32 PCM processed in
// fixed quanta of QuantumSize frames. This package defines:
//   - Quantum and Buffer types
//   - frame/second conversions and the latency-to-quantum mapping
//   - sample format conversions used at the codec boundary
//   - RMS helpers used for calibration and waveform rendering
//   - Ring, a fixed circular buffer with wrap-around indexing
//   - FIFO, a bounded sample queue used to adapt device periods to quanta
//
// Example:
//
//	count := audio.LatencyBufferCount(0.25, audio.DefaultSampleRate) // 86
//	frames := audio.SecondsToFrames(1.5, audio.DefaultSampleRate)     // 66150
package audio
