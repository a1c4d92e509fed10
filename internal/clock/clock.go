// ABOUTME: Audio clock published by the device callback
// ABOUTME: Tracks the offset and drift between frame time and wall time
package clock

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Quality represents how trustworthy the current estimate is
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

const (
	// anchors older than this mean the stream has stalled
	staleAfter = 500 * time.Millisecond

	// residuals larger than this are treated as clock jumps
	maxResidual = 0.05

	// residuals larger than this degrade quality
	degradedResidual = 0.005
)

// AudioClock converts the device frame counter into seconds. The audio
// callback publishes (frame, wall) anchors without locking; readers
// extrapolate from the latest anchor using the estimated drift.
type AudioClock struct {
	rate int
	now  func() time.Time

	// seqlock protected anchor, written only by the callback
	seq   atomic.Uint64
	frame atomic.Int64
	wall  atomic.Int64

	mu            sync.RWMutex
	offset        float64 // audio seconds minus wall seconds
	drift         float64 // dimensionless, audio s per wall s minus one
	lastWall      float64
	residual      float64
	sampleCount   int
	smoothingRate float64
	quality       Quality
}

// New creates a clock for a stream running at rate frames per second.
func New(rate int) *AudioClock {
	return &AudioClock{
		rate:          rate,
		now:           time.Now,
		smoothingRate: 0.1, // 10% weight to new samples
		quality:       QualityLost,
	}
}

// SetTimeSource replaces the wall clock, used by tests.
func (c *AudioClock) SetTimeSource(now func() time.Time) {
	c.now = now
}

// Rate returns the frame rate.
func (c *AudioClock) Rate() int {
	return c.rate
}

// Publish records that frame was reached at wall (unix nanoseconds). It is
// called from the audio callback and never blocks.
func (c *AudioClock) Publish(frame int64, wall int64) {
	c.seq.Add(1)
	c.frame.Store(frame)
	c.wall.Store(wall)
	c.seq.Add(1)
}

// Anchor returns the latest published (frame, wall) pair.
func (c *AudioClock) Anchor() (frame int64, wall int64, ok bool) {
	for {
		s1 := c.seq.Load()
		if s1 == 0 {
			return 0, 0, false
		}
		if s1&1 == 1 {
			continue
		}
		frame = c.frame.Load()
		wall = c.wall.Load()
		if c.seq.Load() == s1 {
			return frame, wall, true
		}
	}
}

// Frame returns the latest published frame.
func (c *AudioClock) Frame() int64 {
	frame, _, _ := c.Anchor()
	return frame
}

// Now returns the current audio clock time in seconds, extrapolated from
// the latest anchor. It is zero before the first anchor.
func (c *AudioClock) Now() float64 {
	frame, wall, ok := c.Anchor()
	if !ok {
		return 0
	}

	elapsed := float64(c.now().UnixNano()-wall) / 1e9
	if elapsed < 0 {
		elapsed = 0
	}

	c.mu.RLock()
	drift := c.drift
	c.mu.RUnlock()

	return float64(frame)/float64(c.rate) + elapsed*(1+drift)
}

// Update folds the latest anchor into the offset and drift estimate. It is
// called periodically from the control loop.
func (c *AudioClock) Update() Quality {
	frame, wall, ok := c.Anchor()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok || time.Duration(c.now().UnixNano()-wall) > staleAfter {
		c.quality = QualityLost
		return c.quality
	}

	wallSec := float64(wall) / 1e9
	measured := float64(frame)/float64(c.rate) - wallSec

	// First sample: initialize offset, no drift yet
	if c.sampleCount == 0 {
		c.offset = measured
		c.lastWall = wallSec
		c.sampleCount++
		c.quality = QualityGood
		return c.quality
	}

	dt := wallSec - c.lastWall
	if dt <= 0 {
		return c.quality
	}

	// Second sample: calculate initial drift
	if c.sampleCount == 1 {
		c.drift = (measured - c.offset) / dt
		c.offset = measured
		c.lastWall = wallSec
		c.sampleCount++
		return c.quality
	}

	predicted := c.offset + c.drift*dt
	residual := measured - predicted
	if math.Abs(residual) > maxResidual {
		// Clock jump, typically a device restart or xrun; start over
		c.offset = measured
		c.drift = 0
		c.lastWall = wallSec
		c.sampleCount = 1
		c.quality = QualityDegraded
		return c.quality
	}

	c.offset = predicted + c.smoothingRate*residual
	c.drift += c.smoothingRate * residual / dt
	c.lastWall = wallSec
	c.residual = residual
	c.sampleCount++

	if math.Abs(residual) > degradedResidual {
		c.quality = QualityDegraded
	} else {
		c.quality = QualityGood
	}
	return c.quality
}

// Stats returns the current estimate.
func (c *AudioClock) Stats() (offset, drift float64, quality Quality) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset, c.drift, c.quality
}

// Reset forgets all anchors and estimates, used when a stream is rebuilt.
func (c *AudioClock) Reset() {
	c.seq.Store(0)
	c.frame.Store(0)
	c.wall.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
	c.drift = 0
	c.lastWall = 0
	c.residual = 0
	c.sampleCount = 0
	c.quality = QualityLost
}
