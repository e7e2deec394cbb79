package httpapi

import "time"

// Config defines HTTP API settings.
type Config struct {
	Addr string
	// PreviewRoot is served read-only under /preview/.
	PreviewRoot string
	// StreamHistory bounds per-session SSE replay.
	StreamHistory int
	// MaxBodyBytes bounds request bodies. Zero uses DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultAddr is the backend listen address.
const DefaultAddr = ":3001"

// DefaultMaxBodyBytes matches the backend's accepted upload size.
const DefaultMaxBodyBytes = 50 << 20

const shutdownTimeout = 5 * time.Second
