package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// statusWriter captures what the handler sent so the access log can report it.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Flush keeps the event stream working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type sessionLookupFunc func(*http.Request) schema.SessionID

// endpointClass groups routes for logging. Preview assets and health probes
// are noisy and only logged at debug.
func endpointClass(path string) string {
	switch {
	case path == "/health":
		return "health"
	case path == "/" || strings.HasPrefix(path, "/preview/"):
		return "preview"
	case path == "/api/execute" || path == "/api/save-preview" || path == "/api/sync-files":
		return "backend"
	case strings.HasPrefix(path, "/api/"):
		return "session"
	default:
		return "other"
	}
}

func withRequestLogging(next http.Handler, lookup sessionLookupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		class := endpointClass(r.URL.Path)
		logger := pslog.Ctx(r.Context()).With("remote", clientIP(r), "endpoint", class)
		if lookup != nil {
			if id := lookup(r); id != "" {
				logger = logger.With("session", id)
			}
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", sw.code(),
			"bytes", sw.written,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case sw.code() >= http.StatusInternalServerError:
			logger.Warn("http request", fields...)
		case class == "health" || class == "preview":
			logger.Debug("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	})
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return r.RemoteAddr
}
