// ABOUTME: Null audio driver for headless runs and tests
// ABOUTME: Pumps the callback from a ticker or synchronously via Pump
package device

import (
	"context"
	"sync"
	"time"
)

// Null is a driver with one silent input and one discarding output.
type Null struct {
	// Input, when set, fills the capture buffer before each callback.
	Input func(in []float32)
	// Manual disables the real-time ticker; callers drive streams with Pump.
	Manual bool
	// Rate overrides the rate the device reports, for mismatch tests.
	Rate int

	mu      sync.Mutex
	streams []*NullStream
}

// NewNull creates a null driver.
func NewNull() *Null {
	return &Null{}
}

// Name returns the driver name.
func (n *Null) Name() string {
	return "null"
}

// Devices lists the single null input and output.
func (n *Null) Devices(ctx context.Context) ([]Info, []Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	inputs := []Info{{ID: "null-in", Name: "Null Input", IsDefault: true}}
	outputs := []Info{{ID: "null-out", Name: "Null Output", IsDefault: true}}
	return inputs, outputs, nil
}

// Open starts a null stream.
func (n *Null) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rate := cfg.SampleRate
	if n.Rate > 0 {
		rate = n.Rate
	}
	if rate != cfg.SampleRate {
		return nil, ErrSampleRateMismatch
	}
	period := cfg.PeriodFrames
	if period <= 0 {
		period = 128
	}

	s := &NullStream{
		rate:     rate,
		period:   period,
		callback: cfg.Callback,
		input:    n.Input,
		in:       make([]float32, period),
		out:      make([]float32, 2*period),
		done:     make(chan struct{}),
	}
	if !n.Manual {
		go s.run()
	}

	n.mu.Lock()
	n.streams = append(n.streams, s)
	n.mu.Unlock()
	return s, nil
}

// Close closes every stream the driver opened.
func (n *Null) Close() error {
	n.mu.Lock()
	streams := n.streams
	n.streams = nil
	n.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}
	return nil
}

// NullStream calls the callback with silent (or scripted) input.
type NullStream struct {
	rate     int
	period   int
	callback Callback
	input    func([]float32)

	mu     sync.Mutex
	in     []float32
	out    []float32
	frames int64
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

// SampleRate returns the stream rate.
func (s *NullStream) SampleRate() int {
	return s.rate
}

// Frames returns the number of frames rendered so far.
func (s *NullStream) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Output returns a copy of the last rendered period.
func (s *NullStream) Output() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.out...)
}

// Pump renders periods synchronously. It reports false once closed.
func (s *NullStream) Pump(periods int) bool {
	for i := 0; i < periods; i++ {
		if !s.tick() {
			return false
		}
	}
	return true
}

func (s *NullStream) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.input != nil {
		s.input(s.in)
	} else {
		clear(s.in)
	}
	if s.callback != nil {
		s.callback(s.out, s.in, s.period)
	}
	s.frames += int64(s.period)
	return true
}

func (s *NullStream) run() {
	interval := time.Duration(float64(time.Second) * float64(s.period) / float64(s.rate))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Close stops the stream. The callback is not called after Close returns.
func (s *NullStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}
