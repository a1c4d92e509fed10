// ABOUTME: Root-mean-square helpers
// ABOUTME: Used by calibration transient detection and waveform rendering
package audio

import "math"

// RMS returns the root mean square of samples, 0 for an empty slice.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// WindowedRMS splits samples into consecutive windows of the given size and
// returns the RMS of each. A trailing partial window is included.
func WindowedRMS(samples []float32, window int) []float32 {
	if window <= 0 || len(samples) == 0 {
		return nil
	}
	out := make([]float32, 0, (len(samples)+window-1)/window)
	for start := 0; start < len(samples); start += window {
		end := min(start+window, len(samples))
		out = append(out, RMS(samples[start:end]))
	}
	return out
}

// Peak returns the index of the sample with the largest magnitude.
func Peak(samples []float32) int {
	idx := 0
	var best float32
	for i, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > best {
			best = s
			idx = i
		}
	}
	return idx
}
