package icoder

import (
	"pkt.systems/icoder/core"
	"pkt.systems/icoder/schema"
)

// eventFanout delivers every service event to the SSE hub and the event bus.
type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) each(deliver func(core.EventSink)) {
	for _, sink := range f.sinks {
		if sink != nil {
			deliver(sink)
		}
	}
}

func (f eventFanout) OnSessionEvent(event schema.SessionEvent) {
	f.each(func(s core.EventSink) { s.OnSessionEvent(event) })
}

func (f eventFanout) OnMessage(event schema.MessageEvent) {
	f.each(func(s core.EventSink) { s.OnMessage(event) })
}

func (f eventFanout) OnFiles(event schema.FilesEvent) {
	f.each(func(s core.EventSink) { s.OnFiles(event) })
}

func (f eventFanout) OnPhase(event schema.PhaseEvent) {
	f.each(func(s core.EventSink) { s.OnPhase(event) })
}
