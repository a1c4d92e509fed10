// ABOUTME: Pink and white noise generator with a linear fade-in
// ABOUTME: Masks room tone and gives the calibration a stable noise floor
package engine

import (
	"math/rand/v2"

	"github.com/choirless/rehearsal/pkg/audio"
)

// RampSeconds is how long the noise takes to reach a raised volume.
const RampSeconds = 1.0

// pinkGain roughly compensates for the filter bank's gain.
const pinkGain = 0.11

// Noise generates noise at a target volume. Raising the target fades in
// linearly; lowering it takes effect at once.
type Noise struct {
	rate int
	rng  *rand.Rand

	level  float32
	target float32
	step   float32

	b0, b1, b2, b3, b4, b5, b6 float32
}

// NewNoise creates a generator seeded from seed.
func NewNoise(rate int, seed uint64) *Noise {
	return &Noise{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Level returns the current envelope level.
func (n *Noise) Level() float32 {
	return n.level
}

func (n *Noise) setTarget(target float32) {
	if target == n.target {
		return
	}
	n.target = target
	if target <= n.level {
		n.level = target
		n.step = 0
		return
	}
	n.step = target / float32(RampSeconds*float64(n.rate))
}

// Process adds one quantum of noise to out.
func (n *Noise) Process(volume float32, typ NoiseType, out *audio.Quantum) {
	n.setTarget(volume)
	if n.target == 0 && n.level == 0 {
		return
	}

	for i := range out {
		if n.level < n.target {
			n.level = min(n.level+n.step, n.target)
		}
		white := n.rng.Float32()*2 - 1
		if typ == NoiseWhite {
			out[i] += white * n.level
			continue
		}
		n.b0 = 0.99886*n.b0 + white*0.0555179
		n.b1 = 0.99332*n.b1 + white*0.0750759
		n.b2 = 0.96900*n.b2 + white*0.1538520
		n.b3 = 0.86650*n.b3 + white*0.3104856
		n.b4 = 0.55000*n.b4 + white*0.5329522
		n.b5 = -0.7616*n.b5 - white*0.0168980
		pink := n.b0 + n.b1 + n.b2 + n.b3 + n.b4 + n.b5 + n.b6 + white*0.5362
		n.b6 = white * 0.115926
		out[i] += pink * pinkGain * n.level
	}
}
