package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rehearsal.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func newCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd.Flags(), opts)
	return cmd
}

func TestRegisterFlagsDefaults(t *testing.T) {
	opts := &Options{}
	cmd := newCommand(opts)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if opts.EngineSampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", opts.EngineSampleRate)
	}
	if opts.CalibrationTickPeriod != 1.5 {
		t.Errorf("Expected tick period 1.5, got %f", opts.CalibrationTickPeriod)
	}
	if !opts.ControlMDNS {
		t.Error("Expected mDNS enabled by default")
	}
	if cmd.Flags().Lookup("calibration-tick-url") == nil {
		t.Error("Expected flag tag to override the derived name")
	}
	if cmd.Flags().ShorthandLookup("c") == nil {
		t.Error("Expected -c shorthand for config")
	}
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTOML(t, `
[engine]
driver = "null"
monitor_gain = 0.5
sample_rate = 48000

[calibration]
tick_period = 2

[logging]
level = "debug"
engine = "warn"
`)

	opts := &Options{}
	cmd := newCommand(opts)
	if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.EngineDriver != "null" {
		t.Errorf("Expected driver null, got %s", opts.EngineDriver)
	}
	if opts.EngineMonitorGain != 0.5 {
		t.Errorf("Expected monitor gain 0.5, got %f", opts.EngineMonitorGain)
	}
	if opts.EngineSampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", opts.EngineSampleRate)
	}
	if opts.CalibrationTickPeriod != 2 {
		t.Errorf("Expected integer TOML value to fill float field, got %f", opts.CalibrationTickPeriod)
	}

	lc := LoggingConfig(opts)
	if lc.Level != "debug" || lc.Modules["engine"] != "warn" {
		t.Errorf("Expected debug level with engine=warn, got %+v", lc)
	}
	if _, ok := lc.Modules["transport"]; ok {
		t.Error("Expected unset modules to be omitted")
	}
}

func TestPrecedenceCLIOverEnvOverFile(t *testing.T) {
	path := writeTOML(t, `
[engine]
driver = "oto"
noise_type = "white"

[control]
addr = ":9000"
`)
	t.Setenv(EnvPrefix+"ENGINE_DRIVER", "null")
	t.Setenv(EnvPrefix+"CONTROL_ADDR", ":9100")
	t.Setenv(EnvPrefix+"ENGINE_NOISE_VOLUME", "0.25")

	opts := &Options{}
	cmd := newCommand(opts)
	if err := cmd.ParseFlags([]string{"--config", path, "--control-addr", ":9200"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.EngineDriver != "null" {
		t.Errorf("Expected env to override file, got %s", opts.EngineDriver)
	}
	if opts.EngineNoiseType != "white" {
		t.Errorf("Expected file value white, got %s", opts.EngineNoiseType)
	}
	if opts.ControlAddr != ":9200" {
		t.Errorf("Expected CLI to win, got %s", opts.ControlAddr)
	}
	if opts.EngineNoiseVolume != 0.25 {
		t.Errorf("Expected env float 0.25, got %f", opts.EngineNoiseVolume)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTOML(t, "[engine\ndriver=")
	opts := &Options{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &Options{Config: filepath.Join(t.TempDir(), "absent.toml"), EngineDriver: "malgo"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("Expected missing file to be ignored, got %v", err)
	}
	if opts.EngineDriver != "malgo" {
		t.Errorf("Expected unchanged driver, got %s", opts.EngineDriver)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"LoggingLevel":     "logging-level",
		"Config":           "config",
		"EngineSampleRate": "engine-sample-rate",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}
