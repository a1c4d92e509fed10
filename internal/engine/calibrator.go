// ABOUTME: Calibrator engine measuring round-trip latency from claps
// ABOUTME: Samples ambient noise, plays a tick pattern and clusters clap delays
package engine

import (
	"math"
	"slices"

	"github.com/choirless/rehearsal/pkg/audio"
)

// Phase is the calibrator state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseMeasuringQuiet
	PhaseMeasuringLatency
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseMeasuringQuiet:
		return "measuring-quiet"
	case PhaseMeasuringLatency:
		return "measuring-latency"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// rmsWindow is the transient detection window in samples, four per quantum.
const rmsWindow = 32

// maxCalibrationSamples bounds the kept measurements. Once full the oldest
// sample is dropped so the callback never grows the slices.
const maxCalibrationSamples = 64

// CalibratorOptions tune the latency measurement.
type CalibratorOptions struct {
	InitialQuietPeriod float64 // seconds of ambient sampling
	TickPeriod         float64 // seconds per tick cycle
	MaxSD              float64 // cluster spread accepted as final
	MinSamples         int     // cluster size accepted as final
	ThresholdSDs       float64 // clap threshold above the ambient mean
	MinLatency         float64
	MaxLatency         float64
	ClusterWidth       float64
}

// DefaultCalibratorOptions returns the standard calibration tuning.
func DefaultCalibratorOptions() CalibratorOptions {
	return CalibratorOptions{
		InitialQuietPeriod: 1,
		TickPeriod:         1,
		MaxSD:              0.03,
		MinSamples:         3,
		ThresholdSDs:       20,
		MinLatency:         0.01,
		MaxLatency:         0.8,
		ClusterWidth:       0.05,
	}
}

func (o CalibratorOptions) periodFrames(rate int) int {
	period := o.TickPeriod
	if period <= 0 {
		period = 1
	}
	return int(period * float64(rate))
}

// AmbientStats describe the noise floor measured during the quiet period.
type AmbientStats struct {
	Mean float64
	Max  float64
	SD   float64
}

// Calibrator measures the delay between a tick leaving the speakers and
// the performer's clap arriving at the microphone.
type Calibrator struct {
	opts   CalibratorOptions
	rate   int
	notify func(Notification)

	ring       *audio.Ring
	peakOffset int64

	enabled          bool
	phase            Phase
	startFrame       int64
	quietFrames      int64
	volumes          []float32
	ambient          AmbientStats
	lastClappedFrame int64
	samples          []float64
	sorted           []float64
	window           [audio.QuantumSize / rmsWindow]float32
}

// NewCalibrator creates a calibrator with a silent tick pattern.
func NewCalibrator(rate int, opts CalibratorOptions, notify func(Notification)) *Calibrator {
	quietFrames := int64(opts.InitialQuietPeriod * float64(rate))
	return &Calibrator{
		opts:        opts,
		rate:        rate,
		notify:      notify,
		ring:        audio.NewRing(opts.periodFrames(rate)),
		quietFrames: quietFrames,
		volumes:     make([]float32, 0, quietFrames/rmsWindow+2*audio.QuantumSize/rmsWindow),
		samples:     make([]float64, 0, maxCalibrationSamples),
		sorted:      make([]float64, 0, maxCalibrationSamples),
	}
}

// TickPeriodFrames returns the tick cycle length in frames.
func (c *Calibrator) TickPeriodFrames() int {
	return c.ring.Len()
}

// Phase returns the current state.
func (c *Calibrator) Phase() Phase {
	return c.phase
}

// Ambient returns the measured noise floor.
func (c *Calibrator) Ambient() AmbientStats {
	return c.ambient
}

// SetTickRing installs a tick pattern built by BuildTickRing.
func (c *Calibrator) SetTickRing(ring *audio.Ring, peakOffset int) {
	if ring == nil {
		return
	}
	c.ring = ring
	c.peakOffset = int64(peakOffset)
}

// Process handles one quantum starting at frame. Ticks are added to out.
func (c *Calibrator) Process(frame int64, in *audio.Quantum, enabled bool, out *audio.Quantum) {
	switch {
	case enabled && !c.enabled:
		c.start(frame)
	case !enabled && c.enabled:
		// Disabling aborts with no further emissions
		c.phase = PhaseIdle
	}
	c.enabled = enabled
	if !enabled {
		return
	}

	for i := range c.window {
		c.window[i] = audio.RMS(in[i*rmsWindow : (i+1)*rmsWindow])
	}

	if c.phase == PhaseMeasuringQuiet {
		c.volumes = append(c.volumes, c.window[:]...)
		if frame > c.startFrame {
			c.finishQuiet(frame)
		}
	}

	if c.phase != PhaseMeasuringLatency && c.phase != PhaseDone {
		return
	}

	if c.phase == PhaseMeasuringLatency {
		threshold := c.ambient.Mean + c.ambient.SD*c.opts.ThresholdSDs
		for _, v := range c.window {
			if float64(v) > threshold {
				c.detect(frame)
				break
			}
		}
	}

	// Produce ticks
	base := frame - c.startFrame
	for i := range out {
		out[i] += c.ring.At(base + int64(i))
	}
}

func (c *Calibrator) start(frame int64) {
	c.phase = PhaseMeasuringQuiet
	c.startFrame = frame + c.quietFrames
	c.volumes = c.volumes[:0]
	c.samples = c.samples[:0]
	c.ambient = AmbientStats{}
	// Transients before the first tick have no preceding boundary
	c.lastClappedFrame = c.startFrame + c.peakOffset - int64(c.ring.Len())
	c.emit(Notification{Kind: NotifyQuietStart, Frame: frame})
}

func (c *Calibrator) finishQuiet(frame int64) {
	var mean, maxV float64
	for _, v := range c.volumes {
		mean += float64(v)
		maxV = math.Max(maxV, float64(v))
	}
	mean /= float64(len(c.volumes))
	var sd float64
	for _, v := range c.volumes {
		sd += math.Abs(float64(v) - mean)
	}
	sd /= float64(len(c.volumes))

	c.ambient = AmbientStats{Mean: mean, Max: maxV, SD: sd}
	c.phase = PhaseMeasuringLatency
	c.emit(Notification{Kind: NotifyQuietEnd, Frame: frame, Mean: mean, Max: maxV, SD: sd})
}

// detect ties a transient to the tick boundary that preceded it.
func (c *Calibrator) detect(frame int64) {
	period := int64(c.ring.Len())
	anchor := c.startFrame + c.peakOffset
	previousTick := anchor + floorDiv(frame-anchor, period)*period
	if previousTick <= c.lastClappedFrame {
		return
	}
	c.lastClappedFrame = previousTick

	latency := audio.FramesToSeconds(frame-previousTick, c.rate)
	if !c.acceptLatency(latency) {
		return
	}
	c.AddSample(latency, frame)
}

// acceptLatency applies the inclusive latency bounds.
func (c *Calibrator) acceptLatency(latency float64) bool {
	return latency >= c.opts.MinLatency && latency <= c.opts.MaxLatency
}

// AddSample records one latency measurement and runs the acceptance test.
func (c *Calibrator) AddSample(latency float64, frame int64) {
	if len(c.samples) == maxCalibrationSamples {
		copy(c.samples, c.samples[1:])
		c.samples = c.samples[:len(c.samples)-1]
	}
	c.samples = append(c.samples, latency)

	mean, sd, count := c.cluster()
	c.emit(Notification{
		Kind:    NotifyCalibrationSample,
		Frame:   frame,
		Latency: latency,
		Mean:    mean,
		SD:      sd,
		Count:   count,
	})

	if sd < c.opts.MaxSD && count >= c.opts.MinSamples {
		c.phase = PhaseDone
		c.emit(Notification{
			Kind:    NotifyCalibrationDone,
			Frame:   frame,
			Latency: mean,
			SD:      sd,
			Count:   count,
		})
	}
}

// cluster finds the longest run of sorted samples lying within ClusterWidth
// of the run's first value and returns its mean and mean absolute deviation.
func (c *Calibrator) cluster() (mean, sd float64, count int) {
	c.sorted = append(c.sorted[:0], c.samples...)
	slices.Sort(c.sorted)

	bestStart, bestLen := 0, 0
	for i := range c.sorted {
		n := 0
		for i+n < len(c.sorted) && c.sorted[i+n] < c.sorted[i]+c.opts.ClusterWidth {
			n++
		}
		if n > bestLen {
			bestStart, bestLen = i, n
		}
	}
	if bestLen == 0 {
		return 0, 0, 0
	}

	run := c.sorted[bestStart : bestStart+bestLen]
	for _, s := range run {
		mean += s
	}
	mean /= float64(len(run))
	for _, s := range run {
		sd += math.Abs(s - mean)
	}
	sd /= float64(len(run))
	return mean, sd, len(run)
}

func (c *Calibrator) emit(n Notification) {
	if c.notify != nil {
		c.notify(n)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// BuildTickRing lays out one tick cycle of period seconds: the tick at
// phase zero and the tock at each remaining quarter at a quarter of its
// level, aligned on their peaks. It returns the ring and the tick peak
// offset in frames.
func BuildTickRing(tick, tock []float32, tickPeak, tockPeak, period float64, rate int) (*audio.Ring, int) {
	ring := audio.NewRing(int(period * float64(rate)))
	tickPeakFrames := int64(math.Floor(tickPeak * float64(rate)))
	tockPeakFrames := int64(math.Floor(tockPeak * float64(rate)))

	ring.Overdub(tick, 0, 1)
	for beat := int64(1); beat < 4; beat++ {
		offset := beat*int64(ring.Len())/4 - tockPeakFrames + tickPeakFrames
		ring.Overdub(tock, offset, 0.25)
	}
	return ring, int(tickPeakFrames)
}
