package eventbus

import (
	"testing"
	"time"

	"pkt.systems/icoder/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("s1")
	defer cancel()

	event := schema.MessageEvent{SessionID: "s1", Message: schema.ChatMessage{ID: "m1", Content: "hi"}}
	bus.OnMessage(event)

	select {
	case got := <-ch:
		if got.Type != EventMessage {
			t.Fatalf("expected message event, got %v", got.Type)
		}
		if got.Message == nil || got.Message.Message.Content != "hi" {
			t.Fatalf("unexpected payload: %+v", got.Message)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishIsScopedToSession(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("s1")
	defer cancel()
	bus.OnPhase(schema.PhaseEvent{SessionID: "s2", Phase: schema.PhasePrompting})
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for other session: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAllSessionsReceivesEverySession(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe(AllSessions)
	defer cancel()
	bus.OnSessionEvent(schema.SessionEvent{SessionID: "s1", Type: schema.SessionEventCreated})
	bus.OnFiles(schema.FilesEvent{SessionID: "s2"})
	for _, want := range []EventType{EventSession, EventFiles} {
		select {
		case got := <-ch:
			if got.Type != want {
				t.Fatalf("expected %s, got %s", want, got.Type)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("s1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("s1")
	defer cancel()

	bus.OnMessage(schema.MessageEvent{SessionID: "s1"})
	done := make(chan struct{})
	go func() {
		bus.OnPhase(schema.PhaseEvent{SessionID: "s1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
	bus.mu.Lock()
	var dropped int
	for sub := range bus.subs["s1"] {
		dropped = sub.dropped
	}
	bus.mu.Unlock()
	if dropped != 1 {
		t.Fatalf("expected 1 dropped event, got %d", dropped)
	}
}
