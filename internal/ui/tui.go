// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it status and events
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/session"
)

// StatusSource provides periodic status snapshots.
type StatusSource interface {
	Status() session.Status
}

// NewModel creates a new TUI model. ctrl may be nil for a read-only view.
func NewModel(name string, ctrl Controller) Model {
	if name == "" {
		name = "Rehearsal"
	}
	return Model{
		name: name,
		ctrl: ctrl,
	}
}

// Run creates the program for the full-screen TUI
func Run(name string, ctrl Controller) *tea.Program {
	return tea.NewProgram(NewModel(name, ctrl), tea.WithAltScreen())
}

// Feed sends status snapshots every interval and forwards bus events until
// ctx is cancelled.
func Feed(ctx context.Context, p *tea.Program, src StatusSource, bus *events.Bus, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	unsubscribe := bus.SubscribeAll(func(e events.Event) {
		if _, ok := e.(events.TransportTimeUpdatedEvent); ok {
			return
		}
		p.Send(EventMsg{Event: e})
	})
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Send(StatusMsg(src.Status()))
		}
	}
}
