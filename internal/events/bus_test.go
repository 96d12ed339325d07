package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameHandledEvent, 1)

	unsub := bus.Subscribe(func(e FrameHandledEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(FrameHandledEvent{Action: 0xA0, Status: 0xFF, Length: 3, Timestamp: Now()})

	select {
	case got := <-received:
		if got.Action != 0xA0 || got.Status != 0xFF || got.Length != 3 {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TypesAreIsolated(t *testing.T) {
	bus := New()
	frames := make(chan FrameHandledEvent, 1)
	commits := make(chan StoreCommittedEvent, 1)
	defer bus.Subscribe(func(e FrameHandledEvent) { frames <- e })()
	defer bus.Subscribe(func(e StoreCommittedEvent) { commits <- e })()

	bus.Publish(StoreCommittedEvent{Source: "protocol", Bytes: 96})

	select {
	case got := <-commits:
		if got.Bytes != 96 {
			t.Errorf("Expected 96 bytes, got %d", got.Bytes)
		}
	case <-time.After(time.Second):
		t.Fatal("commit event not delivered")
	}
	select {
	case e := <-frames:
		t.Errorf("unexpected frame event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan RenderFaultEvent, 1)

	unsub := bus.Subscribe(func(e RenderFaultEvent) {
		received <- e
	})
	bus.Publish(RenderFaultEvent{Plane: 3})
	<-received

	unsub()
	bus.Publish(RenderFaultEvent{Plane: 4})
	select {
	case e := <-received:
		t.Errorf("received event after unsubscribe: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(SelfTestEvent{Kind: "index_sweep"})
	bus.Subscribe(func(SelfTestEvent) {})()
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	bus.Subscribe(func(string) {})()
}
