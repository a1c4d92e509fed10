// ABOUTME: Audio graph called from the device callback
// ABOUTME: Adapts device periods to quanta and runs every engine per quantum
package engine

import (
	"time"

	"github.com/choirless/rehearsal/internal/clock"
	"github.com/choirless/rehearsal/pkg/audio"
)

// Options configure a Graph.
type Options struct {
	SampleRate         int
	Calibrator         CalibratorOptions
	CaptureBlockQuanta int // quanta per capture block
	CapturePoolDepth   int // idle capture blocks kept ready
	MaxVoices          int
	MaxPeriodFrames    int
	CommandQueue       int
	NotificationQueue  int
	NoiseSeed          uint64
}

// DefaultOptions returns options for a 44.1 kHz graph.
func DefaultOptions() Options {
	return Options{
		SampleRate:         audio.DefaultSampleRate,
		Calibrator:         DefaultCalibratorOptions(),
		CaptureBlockQuanta: 344, // about one second
		CapturePoolDepth:   64,
		MaxVoices:          64,
		MaxPeriodFrames:    4096,
		CommandQueue:       256,
		NotificationQueue:  256,
		NoiseSeed:          1,
	}
}

// Graph wires the recorder, calibrator, noise generator and mixer into a
// stereo sink. Process is called only from the audio callback; every other
// method is safe to call from any goroutine.
type Graph struct {
	opts   Options
	clock  *clock.AudioClock
	params *Params
	stats  *Stats
	pool   *CapturePool

	recorder   *Recorder
	calibrator *Calibrator
	noise      *Noise
	mixer      *Mixer

	commands      chan Command
	notifications chan Notification

	wallNanos func() int64
	frame     int64

	// period adaptation
	inFIFO  *audio.FIFO
	outFIFO *audio.FIFO
	primed  bool

	in     audio.Quantum
	left   audio.Quantum
	right  audio.Quantum
	mono   audio.Quantum
	inputs [1]*audio.Quantum
	frameL [2 * audio.QuantumSize]float32
}

// NewGraph creates a graph publishing its frame counter to clk.
func NewGraph(opts Options, clk *clock.AudioClock) *Graph {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.CaptureBlockQuanta <= 0 {
		opts.CaptureBlockQuanta = def.CaptureBlockQuanta
	}
	if opts.CapturePoolDepth <= 0 {
		opts.CapturePoolDepth = def.CapturePoolDepth
	}
	if opts.MaxVoices <= 0 {
		opts.MaxVoices = def.MaxVoices
	}
	if opts.MaxPeriodFrames <= 0 {
		opts.MaxPeriodFrames = def.MaxPeriodFrames
	}
	if opts.CommandQueue <= 0 {
		opts.CommandQueue = def.CommandQueue
	}
	if opts.NotificationQueue <= 0 {
		opts.NotificationQueue = def.NotificationQueue
	}
	if clk == nil {
		clk = clock.New(opts.SampleRate)
	}

	g := &Graph{
		opts:          opts,
		clock:         clk,
		params:        NewParams(opts.SampleRate),
		stats:         &Stats{},
		pool:          NewCapturePool(opts.CaptureBlockQuanta, opts.CapturePoolDepth),
		commands:      make(chan Command, opts.CommandQueue),
		notifications: make(chan Notification, opts.NotificationQueue),
		wallNanos:     func() int64 { return time.Now().UnixNano() },
		inFIFO:        audio.NewFIFO(opts.MaxPeriodFrames + audio.QuantumSize),
		outFIFO:       audio.NewFIFO(2 * (opts.MaxPeriodFrames + 2*audio.QuantumSize)),
	}
	g.recorder = NewRecorder(opts.SampleRate, g.pool, g.notify, g.stats)
	g.calibrator = NewCalibrator(opts.SampleRate, opts.Calibrator, g.notify)
	g.noise = NewNoise(opts.SampleRate, opts.NoiseSeed)
	g.mixer = NewMixer(opts.MaxVoices, g.notify, g.stats)
	g.pool.Replenish(opts.CapturePoolDepth)
	return g
}

// SampleRate returns the graph rate.
func (g *Graph) SampleRate() int {
	return g.opts.SampleRate
}

// Clock returns the audio clock the graph publishes to.
func (g *Graph) Clock() *clock.AudioClock {
	return g.clock
}

// Params returns the scalar controls.
func (g *Graph) Params() *Params {
	return g.params
}

// Stats returns the callback counters.
func (g *Graph) Stats() *Stats {
	return g.stats
}

// Pool returns the capture pool.
func (g *Graph) Pool() *CapturePool {
	return g.pool
}

// TickPeriodFrames returns the calibration tick cycle length.
func (g *Graph) TickPeriodFrames() int {
	return g.opts.Calibrator.periodFrames(g.opts.SampleRate)
}

// Send queues a command for the next quantum. It reports false when the
// queue is full.
func (g *Graph) Send(cmd Command) bool {
	select {
	case g.commands <- cmd:
		return true
	default:
		return false
	}
}

// Notifications returns the channel results are delivered on.
func (g *Graph) Notifications() <-chan Notification {
	return g.notifications
}

// Maintain tops up the capture pool. Called from the control loop.
func (g *Graph) Maintain() {
	g.pool.Replenish(g.opts.CapturePoolDepth)
}

// Assemble turns a finished take into contiguous samples.
func (g *Graph) Assemble(t Take) []float32 {
	return g.pool.Assemble(t)
}

// Process renders frames of interleaved stereo into out from frames of mono
// input. in may be nil for output-only devices. Any period size is accepted.
func (g *Graph) Process(out, in []float32, frames int) {
	if frames <= 0 {
		return
	}

	// Whole quanta with nothing buffered go straight through
	if frames%audio.QuantumSize == 0 && g.inFIFO.Len() == 0 && g.outFIFO.Len() == 0 {
		for q := 0; q < frames; q += audio.QuantumSize {
			if in != nil {
				copy(g.in[:], in[q:q+audio.QuantumSize])
			} else {
				clear(g.in[:])
			}
			g.ProcessQuantum(&g.in, &g.left, &g.right)
			interleave(out[2*q:2*(q+audio.QuantumSize)], &g.left, &g.right)
		}
		return
	}

	if !g.primed {
		// One quantum of silence so short periods never starve the output
		clear(g.frameL[:])
		g.outFIFO.Write(g.frameL[:])
		g.primed = true
	}

	for done := 0; done < frames; {
		chunk := min(frames-done, g.opts.MaxPeriodFrames)
		g.adapt(out[2*done:2*(done+chunk)], in, done, chunk)
		done += chunk
	}
}

func (g *Graph) adapt(out, in []float32, start, frames int) {
	if in != nil {
		if n := g.inFIFO.Write(in[start : start+frames]); n < frames {
			g.stats.OverrunFrames.Add(uint64(frames - n))
		}
	} else {
		for i := 0; i < frames; i += audio.QuantumSize {
			n := min(audio.QuantumSize, frames-i)
			clear(g.mono[:n])
			g.inFIFO.Write(g.mono[:n])
		}
	}

	for g.inFIFO.Len() >= audio.QuantumSize {
		g.inFIFO.Read(g.in[:])
		g.ProcessQuantum(&g.in, &g.left, &g.right)
		interleave(g.frameL[:], &g.left, &g.right)
		g.outFIFO.Write(g.frameL[:])
	}

	n := g.outFIFO.Read(out)
	if n < len(out) {
		clear(out[n:])
		g.stats.UnderrunFrames.Add(uint64((len(out) - n) / 2))
	}
}

// ProcessQuantum runs every engine for one quantum of mono input and writes
// the stereo result to left and right.
func (g *Graph) ProcessQuantum(in, left, right *audio.Quantum) {
	g.drainCommands()
	snap := g.params.Snapshot()
	g.clock.Publish(g.frame, g.wallNanos())

	clear(left[:])
	clear(right[:])

	g.recorder.Process(g.frame, in, &snap)
	g.inputs[0] = in
	g.recorder.Forward(g.inputs[:], left, right, snap.MonitorGain)

	clear(g.mono[:])
	g.calibrator.Process(g.frame, in, snap.Calibrating, &g.mono)
	g.noise.Process(snap.NoiseVolume, snap.NoiseType, &g.mono)
	for i := range g.mono {
		left[i] += g.mono[i]
		right[i] += g.mono[i]
	}

	g.mixer.Process(g.frame, left, right)

	g.frame += audio.QuantumSize
	g.stats.QuantaProcessed.Add(1)
}

func (g *Graph) drainCommands() {
	for {
		select {
		case cmd := <-g.commands:
			g.apply(cmd)
		default:
			return
		}
	}
}

func (g *Graph) apply(cmd Command) {
	switch c := cmd.(type) {
	case StartVoice:
		g.mixer.Start(c.Voice)
	case StopItem:
		g.mixer.Stop(c.ItemID)
	case StopLane:
		g.mixer.StopLane(c.LaneID)
	case ClearVoices:
		g.mixer.Clear()
	case SetTickRing:
		g.calibrator.SetTickRing(c.Ring, c.PeakOffset)
	case AbortCapture:
		g.recorder.Abort()
	default:
		return
	}
	g.stats.CommandsApplied.Add(1)
}

func (g *Graph) notify(n Notification) {
	select {
	case g.notifications <- n:
	default:
		g.stats.NotificationsDropped.Add(1)
		if n.Kind == NotifyTake {
			g.pool.Recycle(n.Take.Blocks)
		}
	}
}

func interleave(out []float32, left, right *audio.Quantum) {
	for i := range left {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
}
