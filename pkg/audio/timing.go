// ABOUTME: Frame and second conversions for the audio clock
// ABOUTME: Maps latency in seconds to whole quanta
package audio

import "math"

// FramesToSeconds converts a frame count to seconds at rate.
func FramesToSeconds(frames int64, rate int) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(frames) / float64(rate)
}

// SecondsToFrames converts seconds to the nearest frame count at rate.
func SecondsToFrames(seconds float64, rate int) int64 {
	return int64(math.Round(seconds * float64(rate)))
}

// QuantumDuration is the length of one quantum in seconds.
func QuantumDuration(rate int) float64 {
	return FramesToSeconds(QuantumSize, rate)
}

// LatencyBufferCount returns how many quanta cover latencySeconds,
// round(latency * rate / QuantumSize). Negative latency counts as zero.
func LatencyBufferCount(latencySeconds float64, rate int) int {
	if latencySeconds <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(latencySeconds * float64(rate) / QuantumSize))
}
