// ABOUTME: CLI options with TOML and environment mapping
// ABOUTME: One flat struct shared by every command
package config

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"rehearsal.toml"`

	// Engine settings
	EngineDriver              string  `help:"Audio driver (malgo, oto, null)" default:"malgo" toml:"engine.driver" env:"ENGINE_DRIVER"`
	EngineSampleRate          int     `help:"Engine sample rate" default:"44100" toml:"engine.sample_rate" env:"ENGINE_SAMPLE_RATE"`
	EnginePeriodFrames        int     `help:"Device period in frames" default:"128" toml:"engine.period_frames" env:"ENGINE_PERIOD_FRAMES"`
	EngineMonitorGain         float64 `help:"Gain of the microphone monitor bus" default:"0" toml:"engine.monitor_gain" env:"ENGINE_MONITOR_GAIN"`
	EngineNoiseType           string  `help:"Noise generator colour (pink, white)" default:"pink" toml:"engine.noise_type" env:"ENGINE_NOISE_TYPE"`
	EngineNoiseVolume         float64 `help:"Noise generator volume" default:"0" toml:"engine.noise_volume" env:"ENGINE_NOISE_VOLUME"`
	EngineMaxRecordingSeconds int     `help:"Longest take before recording stops automatically (0 disables)" default:"900" toml:"engine.max_recording_seconds" env:"ENGINE_MAX_RECORDING_SECONDS"`

	// Calibration settings
	CalibrationTickPeriod  float64 `help:"Seconds between calibration ticks" default:"1.5" toml:"calibration.tick_period" env:"CALIBRATION_TICK_PERIOD"`
	CalibrationQuietPeriod float64 `help:"Seconds of ambient measurement" default:"1" toml:"calibration.quiet_period" env:"CALIBRATION_QUIET_PERIOD"`
	CalibrationTickURL     string  `help:"Tick sound asset" default:"" flag:"calibration-tick-url" toml:"calibration.tick_url" env:"CALIBRATION_TICK_URL"`
	CalibrationTockURL     string  `help:"Tock sound asset" default:"" flag:"calibration-tock-url" toml:"calibration.tock_url" env:"CALIBRATION_TOCK_URL"`

	// Transport settings
	TransportPreloadMs      int `help:"Delay between play and first sample" default:"50" toml:"transport.preload_ms" env:"TRANSPORT_PRELOAD_MS"`
	TransportLookaheadMs    int `help:"Scheduling lookahead window" default:"1000" toml:"transport.lookahead_ms" env:"TRANSPORT_LOOKAHEAD_MS"`
	TransportPassIntervalMs int `help:"Scheduler pass interval" default:"16" toml:"transport.pass_interval_ms" env:"TRANSPORT_PASS_INTERVAL_MS"`

	// Storage settings
	StorePath          string `help:"Preferences file" default:"rehearsal-prefs.toml" toml:"store.path" env:"STORE_PATH"`
	AssetsCacheDir     string `help:"Asset cache directory (default: system temp)" default:"" toml:"assets.cache_dir" env:"ASSETS_CACHE_DIR"`
	LayersExportDir    string `help:"Directory finished layers are written to" default:"" toml:"layers.export_dir" env:"LAYERS_EXPORT_DIR"`
	LayersExportFormat string `help:"Layer export format (f32, wav, opus)" default:"f32" toml:"layers.export_format" env:"LAYERS_EXPORT_FORMAT"`

	// Control surface settings
	ControlAddr    string `help:"Control WebSocket listen address" default:":8928" toml:"control.addr" env:"CONTROL_ADDR"`
	ControlName    string `help:"Advertised session name (default: hostname-rehearsal)" default:"" toml:"control.name" env:"CONTROL_NAME"`
	ControlMDNS    bool   `help:"Advertise the control endpoint over mDNS" default:"true" flag:"control-mdns" toml:"control.mdns" env:"CONTROL_MDNS"`
	MetricsEnabled bool   `help:"Serve Prometheus metrics on the control address" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Terminal settings
	NoTUI   bool   `help:"Disable TUI, use streaming logs instead" default:"false" flag:"no-tui"`
	LogFile string `help:"Log file path used while the TUI is active" default:"rehearsal.log" toml:"logging.file" env:"LOG_FILE"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingEngine    string `help:"Engine logging level" default:"" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingTransport string `help:"Transport logging level" default:"" toml:"logging.transport" env:"LOGGING_TRANSPORT"`
	LoggingSession   string `help:"Session logging level" default:"" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingDevice    string `help:"Device logging level" default:"" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingControl   string `help:"Control server logging level" default:"" toml:"logging.control" env:"LOGGING_CONTROL"`
}

// LoggingModules returns the per-module overrides that were set.
func (o *Options) LoggingModules() map[string]string {
	modules := map[string]string{
		"engine":    o.LoggingEngine,
		"transport": o.LoggingTransport,
		"session":   o.LoggingSession,
		"device":    o.LoggingDevice,
		"control":   o.LoggingControl,
	}
	for k, v := range modules {
		if v == "" {
			delete(modules, k)
		}
	}
	return modules
}
