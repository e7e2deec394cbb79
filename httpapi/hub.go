package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                  `json:"seq"`
	Type      string                  `json:"type"`
	Session   schema.SessionID        `json:"session,omitempty"`
	Lifecycle schema.SessionEventType `json:"lifecycle,omitempty"`
	Message   *schema.ChatMessage     `json:"message,omitempty"`
	Files     []schema.File           `json:"files,omitempty"`
	Tabs      []schema.Tab            `json:"tabs,omitempty"`
	ActiveTab schema.FileID           `json:"activeTab,omitempty"`
	Phase     schema.Phase            `json:"phase,omitempty"`
	TurnID    string                  `json:"turn,omitempty"`
	Snapshot  *schema.SessionSnapshot `json:"snapshot,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// Hub broadcasts events per editor session and keeps a bounded replay
// history for reconnecting clients.
type Hub struct {
	mu          sync.Mutex
	sessions    map[schema.SessionID]*sessionHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		sessions:    make(map[schema.SessionID]*sessionHub),
		historySize: historySize,
	}
}

// OnSessionEvent implements core.EventSink. Closing a session drops its
// history after subscribers are told.
func (h *Hub) OnSessionEvent(event schema.SessionEvent) {
	logx.WithSession(context.Background(), event.SessionID).Trace("hub session event", "type", event.Type)
	h.publish(event.SessionID, StreamEvent{
		Type:      "session",
		Session:   event.SessionID,
		Lifecycle: event.Type,
		Timestamp: time.Now(),
	})
	if event.Type == schema.SessionEventClosed {
		h.mu.Lock()
		if sh := h.sessions[event.SessionID]; sh != nil && len(sh.subs) == 0 {
			delete(h.sessions, event.SessionID)
		}
		h.mu.Unlock()
	}
}

// OnMessage implements core.EventSink.
func (h *Hub) OnMessage(event schema.MessageEvent) {
	logx.WithSession(context.Background(), event.SessionID).Trace("hub message event", "user", event.Message.IsUser)
	msg := event.Message
	h.publish(event.SessionID, StreamEvent{
		Type:      "message",
		Session:   event.SessionID,
		Message:   &msg,
		Timestamp: time.Now(),
	})
}

// OnFiles implements core.EventSink.
func (h *Hub) OnFiles(event schema.FilesEvent) {
	logx.WithSession(context.Background(), event.SessionID).Trace("hub files event", "files", len(event.Files))
	h.publish(event.SessionID, StreamEvent{
		Type:      "files",
		Session:   event.SessionID,
		Files:     event.Files,
		Tabs:      event.Tabs,
		ActiveTab: event.ActiveTab,
		Timestamp: time.Now(),
	})
}

// OnPhase implements core.EventSink.
func (h *Hub) OnPhase(event schema.PhaseEvent) {
	logx.WithSession(context.Background(), event.SessionID).Trace("hub phase event", "phase", event.Phase)
	h.publish(event.SessionID, StreamEvent{
		Type:      "phase",
		Session:   event.SessionID,
		Phase:     event.Phase,
		TurnID:    event.TurnID,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber for a session.
func (h *Hub) Subscribe(sessionID schema.SessionID) (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.getOrCreateLocked(sessionID)
	ch := make(chan StreamEvent, 256)
	sh.subs[ch] = struct{}{}
	seq := sh.seq
	log := logx.WithSession(context.Background(), sessionID)
	log.Info("hub subscribe", "subs", len(sh.subs), "history", len(sh.history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(sh.subs, ch)
			close(ch)
			remaining := len(sh.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(sessionID schema.SessionID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.sessions[sessionID]
	if sh == nil {
		return nil
	}
	events := make([]StreamEvent, 0, len(sh.history))
	for _, event := range sh.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.WithSession(context.Background(), sessionID).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(sessionID schema.SessionID, event StreamEvent) {
	h.mu.Lock()
	sh := h.getOrCreateLocked(sessionID)
	sh.seq++
	event.Seq = sh.seq
	sh.history = append(sh.history, event)
	if len(sh.history) > h.historySize {
		sh.history = sh.history[len(sh.history)-h.historySize:]
	}
	dropped := 0
	for sub := range sh.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.WithSession(context.Background(), sessionID).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateLocked(sessionID schema.SessionID) *sessionHub {
	sh := h.sessions[sessionID]
	if sh == nil {
		sh = &sessionHub{
			subs: make(map[chan StreamEvent]struct{}),
		}
		h.sessions[sessionID] = sh
	}
	return sh
}

type sessionHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
}
