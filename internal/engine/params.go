// ABOUTME: Lock-free parameters shared between the control loop and the callback
// ABOUTME: Snapshot is taken once at the start of every quantum
package engine

import (
	"math"
	"sync/atomic"

	"github.com/choirless/rehearsal/pkg/audio"
)

// NoiseType selects the noise generator colour.
type NoiseType int32

const (
	NoisePink NoiseType = iota
	NoiseWhite
)

// ParseNoiseType maps a config string to a NoiseType, defaulting to pink.
func ParseNoiseType(s string) NoiseType {
	if s == "white" {
		return NoiseWhite
	}
	return NoisePink
}

// Params holds the scalar controls of a Graph.
type Params struct {
	rate            int
	recording       atomic.Bool
	calibrating     atomic.Bool
	latencySeconds  atomic.Uint64
	latencyBuffers  atomic.Int64
	startTimeOffset atomic.Uint64
	noiseVolume     atomic.Uint32
	noiseType       atomic.Int32
	monitorGain     atomic.Uint32
}

// Snapshot is an immutable copy of Params for one quantum.
type Snapshot struct {
	Recording       bool
	Calibrating     bool
	LatencyBuffers  int
	StartTimeOffset float64
	NoiseVolume     float32
	NoiseType       NoiseType
	MonitorGain     float32
}

// NewParams creates parameters for a graph running at rate.
func NewParams(rate int) *Params {
	return &Params{rate: rate}
}

// Snapshot reads every parameter once.
func (p *Params) Snapshot() Snapshot {
	return Snapshot{
		Recording:       p.recording.Load(),
		Calibrating:     p.calibrating.Load(),
		LatencyBuffers:  int(p.latencyBuffers.Load()),
		StartTimeOffset: math.Float64frombits(p.startTimeOffset.Load()),
		NoiseVolume:     math.Float32frombits(p.noiseVolume.Load()),
		NoiseType:       NoiseType(p.noiseType.Load()),
		MonitorGain:     math.Float32frombits(p.monitorGain.Load()),
	}
}

// SetRecording sets the recorder's recording flag.
func (p *Params) SetRecording(on bool) { p.recording.Store(on) }

// Recording reports the recording flag.
func (p *Params) Recording() bool { return p.recording.Load() }

// SetCalibrating sets the calibrator's enabled flag.
func (p *Params) SetCalibrating(on bool) { p.calibrating.Store(on) }

// Calibrating reports the calibrator's enabled flag.
func (p *Params) Calibrating() bool { return p.calibrating.Load() }

// SetLatency sets the round-trip latency compensated by the recorder.
// Negative values are clamped to zero.
func (p *Params) SetLatency(seconds float64) {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	p.latencySeconds.Store(math.Float64bits(seconds))
	p.latencyBuffers.Store(int64(audio.LatencyBufferCount(seconds, p.rate)))
}

// Latency returns the configured latency in seconds.
func (p *Params) Latency() float64 {
	return math.Float64frombits(p.latencySeconds.Load())
}

// LatencyBuffers returns the latency in whole quanta.
func (p *Params) LatencyBuffers() int {
	return int(p.latencyBuffers.Load())
}

// SetStartTimeOffset sets the transport start in audio clock seconds.
func (p *Params) SetStartTimeOffset(seconds float64) {
	p.startTimeOffset.Store(math.Float64bits(seconds))
}

// SetNoise sets the noise generator target volume and colour.
func (p *Params) SetNoise(volume float32, typ NoiseType) {
	p.noiseVolume.Store(math.Float32bits(clampUnit(volume)))
	p.noiseType.Store(int32(typ))
}

// SetMonitorGain sets the gain of the microphone pass-through bus.
func (p *Params) SetMonitorGain(gain float32) {
	p.monitorGain.Store(math.Float32bits(clampUnit(gain)))
}

func clampUnit(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
