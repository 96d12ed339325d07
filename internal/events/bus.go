package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. A nil *Bus drops every event.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Delivery is asynchronous.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case FrameHandledEvent:
		event.Publish(b.dispatcher, e)
	case StoreCommittedEvent:
		event.Publish(b.dispatcher, e)
	case RenderFaultEvent:
		event.Publish(b.dispatcher, e)
	case SelfTestEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter and
// returns an unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e FrameHandledEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(FrameHandledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StoreCommittedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RenderFaultEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SelfTestEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Now formats the event timestamp.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
