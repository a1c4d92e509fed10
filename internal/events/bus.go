// ABOUTME: Typed event bus over kelindar/event
// ABOUTME: Fans engine and transport events out to subscribers
package events

import (
	"github.com/kelindar/event"
)

// Bus broadcasts events through a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to every subscriber of its type. Unknown event types
// are ignored.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case QuietCalibrationStartEvent:
		event.Publish(b.dispatcher, e)
	case QuietCalibrationEndEvent:
		event.Publish(b.dispatcher, e)
	case CalibrationSampleEvent:
		event.Publish(b.dispatcher, e)
	case CalibrationDoneEvent:
		event.Publish(b.dispatcher, e)
	case RecordingFinishedEvent:
		event.Publish(b.dispatcher, e)
	case TransportTimeUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case TransportStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler, a func taking one event type, and returns a
// function that removes it. Handlers of any other shape are ignored.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(QuietCalibrationStartEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(QuietCalibrationEndEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CalibrationSampleEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CalibrationDoneEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TransportTimeUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TransportStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeAll forwards every event type to handler and returns a function
// that removes all of the subscriptions.
func (b *Bus) SubscribeAll(handler func(Event)) func() {
	unsubs := []func(){
		event.Subscribe(b.dispatcher, func(e QuietCalibrationStartEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e QuietCalibrationEndEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e CalibrationSampleEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e CalibrationDoneEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e RecordingFinishedEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e TransportTimeUpdatedEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e TransportStateChangedEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e DeviceErrorEvent) { handler(e) }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
