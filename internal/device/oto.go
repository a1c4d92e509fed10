// ABOUTME: Oto output-only driver
// ABOUTME: The player pulls rendered audio from the callback through an io.Reader
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/choirless/rehearsal/internal/logging"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it is shared by every
// Oto driver and never torn down.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

// Oto plays through the system default output and has no inputs. It suits
// listening back and machines where duplex capture is unavailable.
type Oto struct {
	logger *slog.Logger
}

// NewOto creates an oto driver.
func NewOto() *Oto {
	return &Oto{logger: logging.GetLogger("device")}
}

// Name returns the driver name.
func (o *Oto) Name() string {
	return "oto"
}

// Devices lists the default output only.
func (o *Oto) Devices(ctx context.Context) ([]Info, []Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return nil, []Info{{ID: "oto-default", Name: "System Default Output", IsDefault: true}}, nil
}

// Open starts an output stream. An input id is an error.
func (o *Oto) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.InputID != "" {
		return nil, ErrNoInput
	}

	octx, err := o.context(cfg)
	if err != nil {
		return nil, err
	}

	r := &otoReader{callback: cfg.Callback}
	player := octx.NewPlayer(r)
	player.Play()

	o.logger.Info("Output stream opened", "sample_rate", cfg.SampleRate)
	return &otoStream{player: player, reader: r, rate: cfg.SampleRate}, nil
}

func (o *Oto) context(cfg StreamConfig) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != cfg.SampleRate {
			return nil, fmt.Errorf("%w: oto context already running at %d Hz", ErrSampleRateMismatch, otoRate)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	if cfg.PeriodFrames > 0 {
		op.BufferSize = periodDuration(cfg.PeriodFrames, cfg.SampleRate)
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoRate = cfg.SampleRate
	return ctx, nil
}

// Close is a no-op; the shared oto context outlives drivers.
func (o *Oto) Close() error {
	return nil
}

// otoReader renders the graph on demand. oto calls Read from its own
// goroutine, which plays the role of the audio callback.
type otoReader struct {
	mu       sync.Mutex
	callback Callback
	out      []float32
	closed   bool
}

func (r *otoReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if r.closed || r.callback == nil {
		clear(p[:frames*8])
		return frames * 8, nil
	}
	if len(r.out) < 2*frames {
		r.out = make([]float32, 2*frames)
	}
	out := r.out[:2*frames]
	r.callback(out, nil, frames)

	for i, v := range out {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return frames * 8, nil
}

func (r *otoReader) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

type otoStream struct {
	player *oto.Player
	reader *otoReader
	rate   int
	once   sync.Once
}

func (s *otoStream) SampleRate() int {
	return s.rate
}

func (s *otoStream) Close() error {
	var err error
	s.once.Do(func() {
		s.reader.close()
		s.player.Pause()
		err = s.player.Close()
	})
	return err
}

func periodDuration(frames, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
