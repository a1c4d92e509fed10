// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used to convert between different sample rates using linear interpolation
package resample

import (
	"math"

	"github.com/choirless/rehearsal/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
	position   float64
	last       float32 // last input sample of the previous chunk, index -1
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input samples to the output rate and returns the number
// of samples written. output must hold OutputLen(len(input)) samples; the
// last input sample is carried into the next call so chunk boundaries
// interpolate.
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	at := func(i int) float32 {
		if i < 0 {
			return r.last
		}
		return input[i]
	}

	outIdx := 0
	for outIdx < len(output) {
		idx := int(math.Floor(r.position))
		if idx+1 >= len(input) {
			break
		}

		// Linear interpolation factor
		frac := float32(r.position - float64(idx))
		output[outIdx] = at(idx)*(1-frac) + at(idx+1)*frac

		outIdx++
		r.position += r.ratio
	}

	// Rebase position onto the next chunk, keeping the fractional part
	r.position -= float64(len(input))
	r.last = input[len(input)-1]

	return outIdx
}

// OutputLen returns how many samples Resample produces for n more inputs.
func (r *Resampler) OutputLen(n int) int {
	count := 0
	for pos := r.position; int(math.Floor(pos))+1 < n; pos += r.ratio {
		count++
	}
	return count
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.last = 0
}

// Buffer converts a whole buffer to rate. A buffer already at rate is
// returned unchanged.
func Buffer(buf audio.Buffer, rate int) audio.Buffer {
	if buf.SampleRate == rate || buf.SampleRate <= 0 || rate <= 0 || len(buf.Samples) == 0 {
		return buf
	}
	r := New(buf.SampleRate, rate)
	out := make([]float32, r.OutputLen(len(buf.Samples)))
	n := r.Resample(buf.Samples, out)
	return audio.Buffer{Samples: out[:n], SampleRate: rate}
}
