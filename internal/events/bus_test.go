package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan CalibrationDoneEvent, 1)

	unsub := bus.Subscribe(func(e CalibrationDoneEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(CalibrationDoneEvent{Latency: 0.21, SD: 0.004, SampleCount: 5})

	select {
	case got := <-received:
		if got.Latency != 0.21 || got.SampleCount != 5 {
			t.Errorf("Expected latency 0.21 with 5 samples, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan TransportTimeUpdatedEvent, 1)

	unsub := bus.Subscribe(func(e TransportTimeUpdatedEvent) {
		received <- e
	})

	bus.Publish(TransportTimeUpdatedEvent{OffsetSeconds: 1})
	<-received

	unsub()

	bus.Publish(TransportTimeUpdatedEvent{OffsetSeconds: 2})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := New()
	received := make(chan Event, 4)
	unsub := bus.SubscribeAll(func(e Event) { received <- e })
	defer unsub()

	bus.Publish(QuietCalibrationStartEvent{})
	bus.Publish(DeviceErrorEvent{Op: "init", Error: "boom"})

	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			names[Name(e)] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if !names["quietCalibrationStart"] || !names["deviceError"] {
		t.Errorf("expected both events, got %v", names)
	}
}
