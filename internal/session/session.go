// ABOUTME: Device/session orchestrator owning the audio graph lifecycle
// ABOUTME: Enumerates devices, builds the graph on init and tears it down on close
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/choirless/rehearsal/internal/assets"
	"github.com/choirless/rehearsal/internal/clock"
	"github.com/choirless/rehearsal/internal/device"
	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/choirless/rehearsal/internal/store"
	"github.com/choirless/rehearsal/internal/transport"
	"github.com/choirless/rehearsal/pkg/audio"
)

// ErrNotInitialised is returned by operations that need an open session.
var ErrNotInitialised = errors.New("audio session not initialised")

// Config configures the orchestrator.
type Config struct {
	SampleRate   int
	PeriodFrames int
	Engine       engine.Options
	Transport    transport.Options
	PassInterval time.Duration

	TickPeriod  float64
	TickURL     string
	TockURL     string
	MonitorGain float32
	NoiseVolume float32
	NoiseType   engine.NoiseType

	// MaxRecording stops a take that runs longer; zero disables the limit.
	MaxRecording time.Duration

	ExportDir    string
	ExportFormat string
}

// DefaultConfig returns the standard 44.1 kHz, 128-frame configuration.
func DefaultConfig() Config {
	eng := engine.DefaultOptions()
	eng.Calibrator.TickPeriod = 1.5
	return Config{
		SampleRate:   audio.DefaultSampleRate,
		PeriodFrames: audio.QuantumSize,
		Engine:       eng,
		Transport:    transport.DefaultOptions(),
		PassInterval: 16 * time.Millisecond,
		TickPeriod:   1.5,
		ExportFormat: "f32",
	}
}

// Layer is a finished recording handed to the LayerSink.
type Layer struct {
	ID         string
	Samples    []float32
	SampleRate int
	StartTime  float64
	Path       string // export path, empty when not exported
}

// AudioSession is everything built by Init and released by Close.
type AudioSession struct {
	InputID  string
	OutputID string

	clock     *clock.AudioClock
	graph     *engine.Graph
	stream    device.Stream
	scheduler *transport.Scheduler
	loop      *Loop

	calibrating    bool
	calibration    CalibrationStatus
	wasRecording   bool
	recordingSince float64
	layers         int
}

// Orchestrator is the single entry point for a rehearsal participant's
// audio: devices, calibration, the timeline and recording.
type Orchestrator struct {
	cfg     Config
	driver  device.Driver
	prefs   *store.Preferences
	fetcher *assets.Fetcher
	bus     *events.Bus
	logger  *slog.Logger

	// LayerSink, when set, receives every finished recording on the loop
	// goroutine.
	LayerSink func(Layer)

	mu      sync.Mutex
	session *AudioSession
	devices *device.Set
}

// NewOrchestrator creates an orchestrator. fetcher may be nil when only
// in-memory items are loaded.
func NewOrchestrator(cfg Config, driver device.Driver, prefs *store.Preferences, fetcher *assets.Fetcher, bus *events.Bus) *Orchestrator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.PeriodFrames <= 0 {
		cfg.PeriodFrames = audio.QuantumSize
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 1.5
	}
	cfg.Engine.SampleRate = cfg.SampleRate
	cfg.Engine.Calibrator.TickPeriod = cfg.TickPeriod
	if prefs == nil {
		prefs, _ = store.Open("")
	}
	if bus == nil {
		bus = events.New()
	}
	return &Orchestrator{
		cfg:     cfg,
		driver:  driver,
		prefs:   prefs,
		fetcher: fetcher,
		bus:     bus,
		logger:  logging.GetLogger("session"),
	}
}

// Bus returns the event bus.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// InitDevices enumerates devices, cached unless reload is set, and resolves
// the selection from preferences or the system defaults.
func (o *Orchestrator) InitDevices(ctx context.Context, reload bool) (device.Set, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initDevicesLocked(ctx, reload)
}

func (o *Orchestrator) initDevicesLocked(ctx context.Context, reload bool) (device.Set, error) {
	if o.devices != nil && !reload {
		return *o.devices, nil
	}

	inputs, outputs, err := o.driver.Devices(ctx)
	if err != nil {
		o.publishDeviceError("enumerate", err)
		return device.Set{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	preferredIn, preferredOut := o.prefs.SelectedDevices()
	set := device.Set{
		Inputs:  device.Normalize(inputs),
		Outputs: device.Normalize(outputs),
	}
	set.SelectedInputID = device.Select(set.Inputs, preferredIn)
	set.SelectedOutputID = device.Select(set.Outputs, preferredOut)

	o.devices = &set
	o.logger.Info("Devices enumerated",
		"driver", o.driver.Name(),
		"inputs", len(set.Inputs), "outputs", len(set.Outputs),
		"input", set.SelectedInputID, "output", set.SelectedOutputID)
	return set, nil
}

// Init closes any open session and builds a new one on the given devices.
// Empty ids use the current selection.
func (o *Orchestrator) Init(ctx context.Context, inputID, outputID string) error {
	if err := o.Close(); err != nil {
		o.logger.Warn("Close before init failed", "error", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	set, err := o.initDevicesLocked(ctx, false)
	if err != nil {
		return err
	}
	if inputID == "" {
		inputID = set.SelectedInputID
	} else if !device.Contains(set.Inputs, inputID) {
		return fmt.Errorf("%w: input %s", device.ErrUnknownDevice, inputID)
	}
	if outputID == "" {
		outputID = set.SelectedOutputID
	} else if !device.Contains(set.Outputs, outputID) {
		return fmt.Errorf("%w: output %s", device.ErrUnknownDevice, outputID)
	}

	clk := clock.New(o.cfg.SampleRate)
	graph := engine.NewGraph(o.cfg.Engine, clk)

	stream, err := o.driver.Open(ctx, device.StreamConfig{
		InputID:      inputID,
		OutputID:     outputID,
		SampleRate:   o.cfg.SampleRate,
		PeriodFrames: o.cfg.PeriodFrames,
		Callback:     graph.Process,
	})
	if err != nil {
		o.publishDeviceError("open", err)
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if stream.SampleRate() != o.cfg.SampleRate {
		stream.Close()
		err := fmt.Errorf("%w: requested %d Hz, got %d Hz", device.ErrSampleRateMismatch, o.cfg.SampleRate, stream.SampleRate())
		o.publishDeviceError("open", err)
		return err
	}

	set.SelectedInputID, set.SelectedOutputID = inputID, outputID
	o.devices = &set
	if err := o.prefs.SetSelectedDevices(inputID, outputID); err != nil {
		o.logger.Warn("Failed to persist device selection", "error", err)
	}

	params := graph.Params()
	latency := o.prefs.Latency(inputID, outputID)
	params.SetLatency(latency)
	params.SetMonitorGain(o.cfg.MonitorGain)
	params.SetNoise(o.cfg.NoiseVolume, o.cfg.NoiseType)

	ring, peak := o.loadTickRing(ctx)
	graph.Send(engine.SetTickRing{Ring: ring, PeakOffset: peak})

	s := &AudioSession{
		InputID:   inputID,
		OutputID:  outputID,
		clock:     clk,
		graph:     graph,
		stream:    stream,
		scheduler: transport.NewScheduler(clk, graph, o.bus, o.cfg.Transport),
	}
	s.loop = NewLoop(o.cfg.PassInterval, func() { o.tick(s) })
	s.loop.Start()
	o.session = s

	o.logger.Info("Audio session initialised",
		"input", inputID, "output", outputID,
		"sample_rate", o.cfg.SampleRate, "period", o.cfg.PeriodFrames,
		"latency", latency)
	return nil
}

// Close stops the transport, drops any capture in progress and releases
// the device. Closing without a session is a no-op.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()

	if s == nil {
		return nil
	}

	err := s.loop.Call(context.Background(), func() {
		s.scheduler.Stop()
		s.graph.Params().SetCalibrating(false)
		s.calibrating = false
		s.graph.Send(engine.AbortCapture{})
		s.graph.Send(engine.ClearVoices{})
	})
	if err != nil {
		o.logger.Warn("Failed to stop transport on close", "error", err)
	}
	s.loop.Stop()

	if cerr := s.stream.Close(); cerr != nil {
		return fmt.Errorf("failed to close audio stream: %w", cerr)
	}
	o.logger.Info("Audio session closed")
	return nil
}

// Shutdown closes the session and the driver.
func (o *Orchestrator) Shutdown() error {
	err := o.Close()
	if derr := o.driver.Close(); derr != nil && err == nil {
		err = derr
	}
	return err
}

// Initialised reports whether a session is open.
func (o *Orchestrator) Initialised() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil
}

// Session returns the open session, or nil.
func (o *Orchestrator) Session() *AudioSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Graph returns the open session's audio graph, or nil.
func (o *Orchestrator) Graph() *engine.Graph {
	if s := o.Session(); s != nil {
		return s.graph
	}
	return nil
}

// call runs fn on the session loop.
func (o *Orchestrator) call(ctx context.Context, fn func(s *AudioSession)) error {
	s := o.Session()
	if s == nil {
		return ErrNotInitialised
	}
	return s.loop.Call(ctx, func() { fn(s) })
}

func (o *Orchestrator) publishDeviceError(op string, err error) {
	o.bus.Publish(events.DeviceErrorEvent{Op: op, Error: err.Error()})
}
