// ABOUTME: Cooperative control loop owning transport state
// ABOUTME: Runs periodic passes and serialises every command closure
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopStopped is returned when calling into a stopped loop.
var ErrLoopStopped = errors.New("session loop stopped")

// Loop runs tick on a fixed interval and executes submitted closures on the
// same goroutine, so state touched only from the loop needs no locking.
type Loop struct {
	interval time.Duration
	tick     func()
	calls    chan func()

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewLoop creates a loop. Start must be called before Call.
func NewLoop(interval time.Duration, tick func()) *Loop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Loop{
		interval: interval,
		tick:     tick,
		calls:    make(chan func()),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	if l.started {
		return
	}
	l.started = true
	go l.run()
}

func (l *Loop) run() {
	defer close(l.stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.calls:
			fn()
		case <-ticker.C:
			if l.tick != nil {
				l.tick()
			}
		}
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.calls <- wrapped:
	case <-l.stopped:
		return ErrLoopStopped
	case <-l.stop:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// A received closure always completes before the loop can exit
	<-done
	return nil
}

// Stop ends the loop and waits for the goroutine to exit.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	if l.started {
		<-l.stopped
	}
}
