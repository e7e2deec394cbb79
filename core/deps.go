package core

import (
	"time"

	"pkt.systems/pslog"
)

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	Gateway      Gateway
	Runner       CommandRunner
	Materializer Materializer
	EventSink    EventSink
	Logger       pslog.Logger
	// Now overrides the clock used for message timestamps.
	Now func() time.Time
}
