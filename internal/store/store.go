// ABOUTME: Local preference store
// ABOUTME: Persists the selected devices and per-pair latency as TOML
// Package store persists local preferences: the selected device pair and
// the measured latency of every input/output pair.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultLatency is used for device pairs that were never calibrated.
const DefaultLatency = 0.25

// prefs is the on-disk TOML document.
type prefs struct {
	Version int                `toml:"version"`
	Devices devicePrefs        `toml:"devices"`
	Latency map[string]float64 `toml:"latency"`
}

type devicePrefs struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`
}

// Preferences is a TOML-backed key-value store. An empty path keeps
// preferences in memory only.
type Preferences struct {
	mu   sync.Mutex
	path string
	data prefs
}

// Open loads preferences from path. A missing file yields defaults.
func Open(path string) (*Preferences, error) {
	p := &Preferences{
		path: path,
		data: prefs{Version: 1, Latency: make(map[string]float64)},
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := toml.Unmarshal(data, &p.data); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if p.data.Latency == nil {
		p.data.Latency = make(map[string]float64)
	}
	if p.data.Version == 0 {
		p.data.Version = 1
	}
	return p, nil
}

// Path returns the backing file path.
func (p *Preferences) Path() string {
	return p.path
}

// SelectedDevices returns the last selected device pair.
func (p *Preferences) SelectedDevices() (input, output string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.Devices.Input, p.data.Devices.Output
}

// SetSelectedDevices records the selected device pair.
func (p *Preferences) SetSelectedDevices(input, output string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Devices = devicePrefs{Input: input, Output: output}
	return p.save()
}

// Latency returns the stored latency for a device pair, or DefaultLatency.
func (p *Preferences) Latency(input, output string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.data.Latency[pairKey(input, output)]; ok {
		return v
	}
	return DefaultLatency
}

// SetLatency stores the latency measured for a device pair.
func (p *Preferences) SetLatency(input, output string, seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Latency[pairKey(input, output)] = seconds
	return p.save()
}

func (p *Preferences) save() error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := toml.Marshal(p.data)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

func pairKey(input, output string) string {
	return input + ":" + output
}
