// ABOUTME: Recorder engine capturing latency-compensated takes
// ABOUTME: Extends each take by a latency tail and drops the same prefix
package engine

import "github.com/choirless/rehearsal/pkg/audio"

// Recorder captures microphone quanta while the recording flag is set.
//
// When recording stops it keeps capturing for LatencyBuffers more quanta,
// because what the performer heard latency seconds ago is only arriving
// now. The take then drops the same number of leading quanta and is
// emitted with its start time relative to the transport.
type Recorder struct {
	rate   int
	pool   *CapturePool
	notify func(Notification)
	stats  *Stats

	prevRecording bool
	capturing     bool
	inTail        bool
	tailRemaining int
	skipQuanta    int
	captureStart  float64
	startOffset   float64 // transport start when the take began

	blocks [][]float32
	fill   int // samples written to the last block
	total  int
}

// NewRecorder creates a recorder drawing capture blocks from pool.
func NewRecorder(rate int, pool *CapturePool, notify func(Notification), stats *Stats) *Recorder {
	if stats == nil {
		stats = &Stats{}
	}
	return &Recorder{rate: rate, pool: pool, notify: notify, stats: stats}
}

// Capturing reports whether a take or its tail is in progress.
func (r *Recorder) Capturing() bool {
	return r.capturing
}

// Process handles one input quantum starting at frame.
func (r *Recorder) Process(frame int64, in *audio.Quantum, snap *Snapshot) {
	switch {
	case snap.Recording && !r.prevRecording:
		if r.capturing {
			// New take while the previous tail is open: close it early
			r.flush()
		}
		r.begin(frame, snap.StartTimeOffset)
	case !snap.Recording && r.prevRecording && r.capturing:
		r.inTail = true
		r.tailRemaining = snap.LatencyBuffers
		r.skipQuanta = snap.LatencyBuffers
		if r.tailRemaining <= 0 {
			r.flush()
		}
	}
	r.prevRecording = snap.Recording

	if !r.capturing {
		return
	}

	r.capture(in)
	if r.inTail {
		r.tailRemaining--
		if r.tailRemaining <= 0 {
			r.flush()
		}
	}
}

// Forward sums the input channels into the stereo bus. A single channel is
// duplicated to both sides; two channels pass through.
func (r *Recorder) Forward(inputs []*audio.Quantum, left, right *audio.Quantum, gain float32) {
	if gain == 0 {
		return
	}
	for _, in := range inputs {
		if in == nil {
			continue
		}
		for i := range in {
			left[i] += in[i] * gain
			right[i] += in[i] * gain
		}
	}
}

// ForwardStereo passes a stereo pair through to the bus.
func (r *Recorder) ForwardStereo(inL, inR *audio.Quantum, left, right *audio.Quantum, gain float32) {
	if gain == 0 {
		return
	}
	for i := range inL {
		left[i] += inL[i] * gain
		right[i] += inR[i] * gain
	}
}

// Abort drops the take in progress without emitting it.
func (r *Recorder) Abort() {
	if r.capturing {
		r.pool.Recycle(r.blocks)
	}
	r.reset()
	r.prevRecording = false
}

func (r *Recorder) begin(frame int64, startOffset float64) {
	r.capturing = true
	r.inTail = false
	r.captureStart = audio.FramesToSeconds(frame, r.rate)
	r.startOffset = startOffset
	blocks, ok := r.pool.getList()
	if !ok {
		r.stats.CaptureAllocFallbacks.Add(1)
	}
	r.blocks = blocks
	r.fill = 0
	r.total = 0
}

func (r *Recorder) capture(in *audio.Quantum) {
	if len(r.blocks) == 0 || r.fill == r.pool.blockSize {
		block, ok := r.pool.getBlock()
		if !ok {
			r.stats.CaptureAllocFallbacks.Add(1)
		}
		r.blocks = append(r.blocks, block)
		r.fill = 0
	}
	last := r.blocks[len(r.blocks)-1]
	copy(last[r.fill:r.fill+audio.QuantumSize], in[:])
	r.fill += audio.QuantumSize
	r.total += audio.QuantumSize
}

func (r *Recorder) flush() {
	take := Take{
		Blocks:    r.blocks,
		BlockSize: r.pool.blockSize,
		Samples:   r.total,
		Skip:      min(r.skipQuanta*audio.QuantumSize, r.total),
		StartTime: r.captureStart - r.startOffset,
	}
	r.stats.TakesFinished.Add(1)
	if r.notify != nil {
		r.notify(Notification{Kind: NotifyTake, Take: take})
	}
	r.reset()
}

func (r *Recorder) reset() {
	r.capturing = false
	r.inTail = false
	r.tailRemaining = 0
	r.skipQuanta = 0
	r.startOffset = 0
	r.blocks = nil
	r.fill = 0
	r.total = 0
}
