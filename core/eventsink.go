package core

import "pkt.systems/icoder/schema"

// EventSink receives session, transcript, file, and phase events.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
	OnMessage(event schema.MessageEvent)
	OnFiles(event schema.FilesEvent)
	OnPhase(event schema.PhaseEvent)
}
