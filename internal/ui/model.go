// ABOUTME: Bubbletea model for the rehearsal TUI
// ABOUTME: Shows calibration progress, transport state and engine health
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/session"
)

const maxSamples = 8

// Controller is the part of the orchestrator the keys drive.
type Controller interface {
	StartCalibration(ctx context.Context) error
	StopCalibration(ctx context.Context) error
	Play(ctx context.Context, startTime float64) error
	Stop(ctx context.Context) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
}

// Model represents the TUI state
type Model struct {
	ctrl Controller
	name string

	// Session
	status session.Status

	// Calibration
	samples  []float64
	finished *events.CalibrationDoneEvent

	// Last layer
	lastLayer    string
	lastDuration float64

	lastError string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = session.Status(msg)
	case EventMsg:
		m.applyEvent(msg.Event)
	case ErrorMsg:
		if msg.Err != nil {
			m.lastError = msg.Err.Error()
		} else {
			m.lastError = ""
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderCalibration()
	s += m.renderTransport()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders device and clock status
func (m Model) renderHeader() string {
	devices := "No audio session"
	if m.status.Initialised {
		devices = fmt.Sprintf("%s -> %s", m.status.InputID, m.status.OutputID)
	}

	clockIcon := "✗"
	switch m.status.ClockQuality {
	case "good":
		clockIcon = "✓"
	case "degraded":
		clockIcon = "⚠"
	}

	return fmt.Sprintf(`┌─ %-51s┐
│ Devices: %-43s │
│ Clock:   %s %-41s │
│ Latency: %-43s │
├──────────────────────────────────────────────────────┤
`, truncate(m.name, 50), truncate(devices, 43), clockIcon,
		truncate(m.status.ClockQuality, 41), fmt.Sprintf("%.1fms", m.status.Latency*1000))
}

// renderCalibration renders calibration progress
func (m Model) renderCalibration() string {
	c := m.status.Calibration
	phase := c.Phase
	if phase == "" {
		phase = engine.PhaseIdle.String()
	}

	s := fmt.Sprintf("│ Calibration: %-39s │\n", phase)
	if c.AmbientMax > 0 {
		s += fmt.Sprintf("│   Ambient: mean %.4f  max %.4f%-17s │\n", c.AmbientMean, c.AmbientMax, "")
	}
	if len(m.samples) > 0 {
		parts := make([]string, len(m.samples))
		for i, v := range m.samples {
			parts[i] = fmt.Sprintf("%.0f", v*1000)
		}
		s += fmt.Sprintf("│   Samples (ms): %-36s │\n", truncate(strings.Join(parts, " "), 36))
		s += fmt.Sprintf("│   Cluster: %.1fms ± %.1fms (%d)%-18s │\n", c.Mean*1000, c.SD*1000, c.Samples, "")
	}
	if m.finished != nil {
		s += fmt.Sprintf("│   Result: %.1fms%-35s │\n", m.finished.Latency*1000, "")
	}
	return s
}

// renderTransport renders play/record state
func (m Model) renderTransport() string {
	state := "Stopped"
	if m.status.Playing {
		state = "Playing"
	}
	if m.status.Recording {
		state += " ● REC"
	}

	s := "├──────────────────────────────────────────────────────┤\n"
	s += fmt.Sprintf("│ Transport: %-9s %s%-20s │\n", state, formatTime(m.status.Offset), "")
	if m.status.PunchIn != nil && m.status.PunchOut != nil {
		s += fmt.Sprintf("│ Punch:     %s - %s%-28s │\n", formatTime(*m.status.PunchIn), formatTime(*m.status.PunchOut), "")
	}
	if m.status.BackingTrack != "" {
		s += fmt.Sprintf("│ Track:     %-41s │\n", truncate(m.status.BackingTrack, 41))
	}
	s += fmt.Sprintf("│ Items: %d  Lanes: %d  Layers: %d%-22s │\n", m.status.Items, len(m.status.Lanes), m.status.Layers, "")
	if m.lastLayer != "" {
		s += fmt.Sprintf("│ Last take: %s (%.1fs)%-3s │\n", truncate(m.lastLayer, 30), m.lastDuration, "")
	}
	return s
}

// renderStats renders engine statistics
func (m Model) renderStats() string {
	e := m.status.Engine
	s := fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Voices: %d active, %d pending%-24s │
│ Underruns: %d  Overruns: %d  Dropped: %d%-8s │
`, e.ActiveVoices, e.PendingVoices, "", e.UnderrunFrames, e.OverrunFrames, e.NotificationsDropped, "")
	if m.lastError != "" {
		s += fmt.Sprintf("│ Error: %-45s │\n", truncate(m.lastError, 45))
	}
	s += "│                                                      │\n"
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ c:Calibrate  space:Play/Stop  r:Record  d:Debug  q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	e := m.status.Engine
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Quanta: %d  Commands: %d%-20s │
│   Alloc fallbacks: %d  Late starts: %d%-10s │
│   Clock drift: %+.2fppm%-29s │
`, e.QuantaProcessed, e.CommandsApplied, "", e.CaptureAllocFallbacks,
		m.status.Scheduler.LateStarts, "", m.status.ClockDrift*1e6, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	case "c":
		if m.ctrl == nil {
			return m, nil
		}
		if m.status.Calibrating {
			return m, m.run(m.ctrl.StopCalibration)
		}
		m.samples = nil
		m.finished = nil
		return m, m.run(m.ctrl.StartCalibration)
	case " ":
		if m.ctrl == nil {
			return m, nil
		}
		if m.status.Playing {
			return m, m.run(m.ctrl.Stop)
		}
		offset := m.status.Offset
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Play(ctx, offset) })
	case "r":
		if m.ctrl == nil {
			return m, nil
		}
		if m.status.Recording {
			return m, m.run(m.ctrl.StopRecording)
		}
		return m, m.run(m.ctrl.StartRecording)
	}

	return m, nil
}

// run performs a controller action off the UI goroutine
func (m Model) run(action func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ErrorMsg{Err: action(ctx)}
	}
}

// applyEvent folds a bus event into the model
func (m *Model) applyEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.QuietCalibrationStartEvent:
		m.samples = nil
		m.finished = nil
	case events.CalibrationSampleEvent:
		m.samples = append(m.samples, e.Latency)
		if len(m.samples) > maxSamples {
			m.samples = m.samples[len(m.samples)-maxSamples:]
		}
	case events.CalibrationDoneEvent:
		m.finished = &e
	case events.RecordingFinishedEvent:
		m.lastLayer = e.LayerID
		m.lastDuration = e.Duration
	case events.DeviceErrorEvent:
		m.lastError = fmt.Sprintf("%s: %s", e.Op, e.Error)
	}
}

// StatusMsg replaces the session snapshot
type StatusMsg session.Status

// EventMsg carries a bus event
type EventMsg struct {
	Event events.Event
}

// ErrorMsg reports the result of a key action; a nil Err clears the error line
type ErrorMsg struct {
	Err error
}

// Utility functions
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d.%d", total/60, total%60, int((seconds-float64(total))*10))
}
