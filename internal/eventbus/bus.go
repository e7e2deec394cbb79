package eventbus

import (
	"context"
	"sync"

	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventSession carries session lifecycle updates.
	EventSession EventType = "session"
	// EventMessage carries transcript appends.
	EventMessage EventType = "message"
	// EventFiles carries file set and tab updates.
	EventFiles EventType = "files"
	// EventPhase carries agent phase transitions.
	EventPhase EventType = "phase"
)

// AllSessions subscribes to events of every session.
const AllSessions schema.SessionID = "*"

// Event represents a UI-facing event emitted by the core service.
type Event struct {
	Type    EventType            `json:"type"`
	Session *schema.SessionEvent `json:"session,omitempty"`
	Message *schema.MessageEvent `json:"message,omitempty"`
	Files   *schema.FilesEvent   `json:"files,omitempty"`
	Phase   *schema.PhaseEvent   `json:"phase,omitempty"`
}

// DefaultDepth is the per-subscriber buffer.
const DefaultDepth = 256

type subscriber struct {
	ch      chan Event
	dropped int
}

// Bus fans events out to per-session subscribers. A slow subscriber loses
// events rather than stalling the agent loop.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[*subscriber]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[*subscriber]struct{}),
		log:   logger,
		depth: DefaultDepth,
	}
}

// Subscribe registers a subscriber for the session and returns its channel
// and a cancel func. Subscribing to AllSessions receives every event.
func (b *Bus) Subscribe(sessionID schema.SessionID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{ch: make(chan Event, b.depth)}
	b.mu.Lock()
	set := b.subs[sessionID]
	if set == nil {
		set = make(map[*subscriber]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	count := len(set)
	b.mu.Unlock()
	logger := b.log.With("session", sessionID)
	logger.Debug("eventbus subscribe", "subs", count)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			b.remove(sessionID, sub)
			dropped := sub.dropped
			close(sub.ch)
			b.mu.Unlock()
			logger.Debug("eventbus unsubscribe", "dropped", dropped)
		})
	}
}

func (b *Bus) remove(sessionID schema.SessionID, sub *subscriber) {
	set := b.subs[sessionID]
	if set == nil {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sessionID)
	}
}

// OnSessionEvent publishes a session lifecycle event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(event.SessionID, Event{Type: EventSession, Session: &event})
}

// OnMessage publishes a transcript event.
func (b *Bus) OnMessage(event schema.MessageEvent) {
	b.publish(event.SessionID, Event{Type: EventMessage, Message: &event})
}

// OnFiles publishes a file set event.
func (b *Bus) OnFiles(event schema.FilesEvent) {
	b.publish(event.SessionID, Event{Type: EventFiles, Files: &event})
}

// OnPhase publishes a phase event.
func (b *Bus) OnPhase(event schema.PhaseEvent) {
	b.publish(event.SessionID, Event{Type: EventPhase, Phase: &event})
}

// publish holds the lock while sending so cancel cannot close a channel
// mid-send. Sends never block.
func (b *Bus) publish(sessionID schema.SessionID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver(b.subs[sessionID], event)
	if sessionID != AllSessions {
		b.deliver(b.subs[AllSessions], event)
	}
}

func (b *Bus) deliver(set map[*subscriber]struct{}, event Event) {
	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
		}
	}
}
