package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsCallsInOrder(t *testing.T) {
	l := NewLoop(time.Hour, nil)
	l.Start()
	defer l.Stop()

	var got []int
	for i := 0; i < 3; i++ {
		if err := l.Call(context.Background(), func() { got = append(got, i) }); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("expected [0 1 2], got %v", got)
	}
}

func TestLoopTicks(t *testing.T) {
	var ticks atomic.Int32
	l := NewLoop(time.Millisecond, func() { ticks.Add(1) })
	l.Start()
	defer l.Stop()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", ticks.Load())
	}
}

func TestLoopCallAfterStop(t *testing.T) {
	l := NewLoop(0, nil)
	l.Start()
	l.Stop()
	l.Stop()

	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoopCallHonoursContext(t *testing.T) {
	block := make(chan struct{})
	l := NewLoop(time.Hour, nil)
	l.Start()
	defer l.Stop()
	defer close(block)

	go func() { _ = l.Call(context.Background(), func() { <-block }) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
