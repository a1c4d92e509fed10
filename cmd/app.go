// ABOUTME: Shared construction of the orchestrator for CLI commands
// ABOUTME: Maps flat options onto the session configuration
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/choirless/rehearsal/internal/assets"
	"github.com/choirless/rehearsal/internal/config"
	"github.com/choirless/rehearsal/internal/device"
	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/session"
	"github.com/choirless/rehearsal/internal/store"
)

// app bundles the long-lived objects every command needs.
type app struct {
	orch    *session.Orchestrator
	fetcher *assets.Fetcher
	bus     *events.Bus
}

// sessionConfig maps the flat options onto the orchestrator configuration.
func sessionConfig(opts *config.Options) session.Config {
	cfg := session.DefaultConfig()
	if opts.EngineSampleRate > 0 {
		cfg.SampleRate = opts.EngineSampleRate
	}
	if opts.EnginePeriodFrames > 0 {
		cfg.PeriodFrames = opts.EnginePeriodFrames
	}
	cfg.MonitorGain = float32(opts.EngineMonitorGain)
	cfg.NoiseVolume = float32(opts.EngineNoiseVolume)
	cfg.NoiseType = engine.ParseNoiseType(opts.EngineNoiseType)
	cfg.MaxRecording = time.Duration(opts.EngineMaxRecordingSeconds) * time.Second

	if opts.CalibrationTickPeriod > 0 {
		cfg.TickPeriod = opts.CalibrationTickPeriod
	}
	if opts.CalibrationQuietPeriod > 0 {
		cfg.Engine.Calibrator.InitialQuietPeriod = opts.CalibrationQuietPeriod
	}
	cfg.TickURL = opts.CalibrationTickURL
	cfg.TockURL = opts.CalibrationTockURL

	if opts.TransportPreloadMs > 0 {
		cfg.Transport.Preload = float64(opts.TransportPreloadMs) / 1000
	}
	if opts.TransportLookaheadMs > 0 {
		cfg.Transport.Lookahead = float64(opts.TransportLookaheadMs) / 1000
	}
	if opts.TransportPassIntervalMs > 0 {
		cfg.PassInterval = time.Duration(opts.TransportPassIntervalMs) * time.Millisecond
	}

	cfg.ExportDir = opts.LayersExportDir
	cfg.ExportFormat = opts.LayersExportFormat
	return cfg
}

func newApp(opts *config.Options) (*app, error) {
	prefs, err := store.Open(opts.StorePath)
	if err != nil {
		return nil, err
	}
	fetcher, err := assets.NewFetcher(opts.AssetsCacheDir)
	if err != nil {
		return nil, err
	}
	bus := events.New()
	driver := device.New(opts.EngineDriver)
	return &app{
		orch:    session.NewOrchestrator(sessionConfig(opts), driver, prefs, fetcher, bus),
		fetcher: fetcher,
		bus:     bus,
	}, nil
}

func (a *app) close() error {
	return a.orch.Shutdown()
}

// sessionName returns the advertised name, defaulting to the hostname.
func sessionName(opts *config.Options) string {
	if opts.ControlName != "" {
		return opts.ControlName
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-rehearsal", hostname)
}
