// Package events wraps kelindar/event with the recorder's typed events.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(SegmentOpenedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so fan out through a
	// type switch.
	switch e := ev.(type) {
	case SegmentOpenedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureProgressEvent:
		event.Publish(b.dispatcher, e)
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
	case SessionFinishedEvent:
		event.Publish(b.dispatcher, e)
	case UploadQueuedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function; the handler's
// parameter type selects which events it receives. Returns an unsubscribe
// function.
// Usage: unsub := bus.Subscribe(func(e SegmentOpenedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SegmentOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UploadQueuedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
