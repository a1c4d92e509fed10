// ABOUTME: Malgo (miniaudio) duplex driver
// ABOUTME: Opens a float32 capture plus playback stream on the chosen devices
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/choirless/rehearsal/internal/logging"
	"github.com/gen2brain/malgo"
)

// Malgo drives devices through miniaudio.
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	logger   *slog.Logger

	// enumerated ids to native device ids
	captureIDs  map[string]malgo.DeviceID
	playbackIDs map[string]malgo.DeviceID
}

// NewMalgo creates a malgo driver. The miniaudio context is created on
// first use.
func NewMalgo() *Malgo {
	return &Malgo{
		logger:      logging.GetLogger("device"),
		captureIDs:  make(map[string]malgo.DeviceID),
		playbackIDs: make(map[string]malgo.DeviceID),
	}
}

// Name returns the driver name.
func (m *Malgo) Name() string {
	return "malgo"
}

func (m *Malgo) context() (*malgo.AllocatedContext, error) {
	if m.malgoCtx != nil {
		return m.malgoCtx, nil
	}
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, cfg, func(message string) {
		m.logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	return ctx, nil
}

// Devices enumerates capture and playback devices.
func (m *Malgo) Devices(ctx context.Context) ([]Info, []Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mctx, err := m.context()
	if err != nil {
		return nil, nil, err
	}

	inputs, err := m.enumerate(mctx, malgo.Capture, m.captureIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	outputs, err := m.enumerate(mctx, malgo.Playback, m.playbackIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	return inputs, outputs, nil
}

func (m *Malgo) enumerate(mctx *malgo.AllocatedContext, kind malgo.DeviceType, ids map[string]malgo.DeviceID) ([]Info, error) {
	devices, err := mctx.Devices(kind)
	if err != nil {
		return nil, err
	}
	clear(ids)
	out := make([]Info, 0, len(devices))
	for i := range devices {
		d := devices[i]
		id := d.ID.String()
		ids[id] = d.ID
		out = append(out, Info{
			ID:        id,
			Name:      d.Name(),
			IsDefault: d.IsDefault != 0,
		})
	}
	return out, nil
}

// Open starts a duplex stream. Empty ids select the system defaults.
func (m *Malgo) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mctx, err := m.context()
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.InputID != "" {
		id, ok := m.captureIDs[cfg.InputID]
		if !ok {
			return nil, fmt.Errorf("%w: input %s", ErrUnknownDevice, cfg.InputID)
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}
	if cfg.OutputID != "" {
		id, ok := m.playbackIDs[cfg.OutputID]
		if !ok {
			return nil, fmt.Errorf("%w: output %s", ErrUnknownDevice, cfg.OutputID)
		}
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	s := &malgoStream{callback: cfg.Callback}
	s.grow(max(cfg.PeriodFrames, 128))

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize duplex device: %w", err)
	}

	if rate := int(device.SampleRate()); rate != cfg.SampleRate {
		device.Uninit()
		return nil, fmt.Errorf("%w: requested %d Hz, device runs at %d Hz", ErrSampleRateMismatch, cfg.SampleRate, rate)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}

	s.device = device
	s.rate = cfg.SampleRate
	m.logger.Info("Duplex stream opened",
		"input", cfg.InputID, "output", cfg.OutputID,
		"sample_rate", cfg.SampleRate, "period", cfg.PeriodFrames)
	return s, nil
}

// Close releases the miniaudio context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", "error", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

type malgoStream struct {
	device   *malgo.Device
	rate     int
	callback Callback

	in  []float32
	out []float32

	closeOnce sync.Once
}

func (s *malgoStream) SampleRate() int {
	return s.rate
}

func (s *malgoStream) grow(frames int) {
	s.in = make([]float32, frames)
	s.out = make([]float32, 2*frames)
}

// data converts the device's little-endian float32 buffers.
func (s *malgoStream) data(pOutput, pInput []byte, frameCount uint32) {
	frames := int(frameCount)
	if frames > len(s.in) {
		// Only happens if the backend ignores the period size
		s.grow(frames)
	}
	in := s.in[:frames]
	out := s.out[:2*frames]

	for i := range in {
		if 4*i+4 <= len(pInput) {
			in[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[4*i:]))
		} else {
			in[i] = 0
		}
	}

	if s.callback != nil {
		s.callback(out, in, frames)
	} else {
		clear(out)
	}

	for i, v := range out {
		if 4*i+4 > len(pOutput) {
			break
		}
		binary.LittleEndian.PutUint32(pOutput[4*i:], math.Float32bits(v))
	}
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				logging.GetLogger("device").Warn("device stop error", "error", err)
			}
			s.device.Uninit()
		}
	})
	return nil
}
