// ABOUTME: Audio device abstraction shared by every driver
// ABOUTME: Drivers enumerate devices and open a callback-driven duplex stream
package device

import (
	"context"
	"errors"
)

var (
	// ErrSampleRateMismatch is returned when a device cannot run at the
	// requested rate.
	ErrSampleRateMismatch = errors.New("device sample rate mismatch")
	// ErrUnknownDevice is returned when an id matches no enumerated device.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrNoInput is returned by output-only drivers asked to capture.
	ErrNoInput = errors.New("driver has no input devices")
)

// Info describes one input or output device.
type Info struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Set is the result of device enumeration plus the current selection.
type Set struct {
	Inputs           []Info `json:"inputs"`
	Outputs          []Info `json:"outputs"`
	SelectedInputID  string `json:"selected_input_id"`
	SelectedOutputID string `json:"selected_output_id"`
}

// Callback renders frames of interleaved stereo into out from frames of
// mono input. in is nil for output-only streams. It runs on the audio
// thread and must not block.
type Callback func(out, in []float32, frames int)

// StreamConfig describes a stream to open.
type StreamConfig struct {
	InputID      string
	OutputID     string
	SampleRate   int
	PeriodFrames int
	Callback     Callback
}

// Stream is an open device stream. Close releases the OS handles.
type Stream interface {
	SampleRate() int
	Close() error
}

// Driver is an audio backend.
type Driver interface {
	Name() string
	Devices(ctx context.Context) (inputs, outputs []Info, err error)
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
	Close() error
}

// New returns the driver registered under name, falling back to null.
func New(name string) Driver {
	switch name {
	case "malgo":
		return NewMalgo()
	case "oto":
		return NewOto()
	default:
		return NewNull()
	}
}
