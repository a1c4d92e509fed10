// ABOUTME: Audio type definitions
// ABOUTME: Defines quanta, mono buffers and sample conversions
package audio

const (
	// QuantumSize is the number of frames the engine processes per callback step.
	QuantumSize = 128

	// DefaultSampleRate is the rate every engine stream is opened at.
	DefaultSampleRate = 44100

	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Quantum is one processing step of mono audio.
type Quantum [QuantumSize]float32

// Format describes an encoded audio asset
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer is decoded mono audio at a known sample rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Clamp limits a sample to [-1, 1].
func Clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// SampleFromInt16 converts a signed 16-bit sample to float.
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float sample to signed 16-bit, clipping out of range values.
func SampleToInt16(sample float32) int16 {
	return int16(Clamp(sample) * 32767)
}

// SampleFrom24Bit converts 24-bit packed bytes (little-endian) to float
func SampleFrom24Bit(b [3]byte) float32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return float32(val) / 8388608
}

// SampleTo24Bit converts a float sample to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample float32) [3]byte {
	val := int32(Clamp(sample) * Max24Bit)
	return [3]byte{
		byte(val),
		byte(val >> 8),
		byte(val >> 16),
	}
}

// SampleFromInt converts an integer sample of the given bit depth to float.
func SampleFromInt(sample int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// SampleToInt converts a float sample to an integer of the given bit depth.
func SampleToInt(sample float32, bitDepth int) int {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float64(int64(1)<<(bitDepth-1)) - 1
	return int(float64(Clamp(sample)) * scale)
}

// Downmix averages interleaved channels into a mono slice.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
