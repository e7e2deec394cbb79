package logx

import (
	"context"

	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	turnKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the context logger with the session id if present.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithTurn annotates the logger with an agent turn id.
func WithTurn(log pslog.Logger, turnID string) pslog.Logger {
	if turnID != "" {
		log = log.With("turn", turnID)
	}
	return log
}

// WithCommand annotates the logger with the command origin and length.
func WithCommand(log pslog.Logger, origin string, command string) pslog.Logger {
	if origin != "" {
		log = log.With("origin", origin)
	}
	return log.With("command_len", len(command))
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}

// ContextWithTurn stores the turn marker on the context.
func ContextWithTurn(ctx context.Context, turnID string) context.Context {
	if ctx == nil || turnID == "" {
		return ctx
	}
	return context.WithValue(ctx, turnKey, turnID)
}

// TurnFromContext returns the current turn id, if any.
func TurnFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	turn, _ := ctx.Value(turnKey).(string)
	return turn
}

// CopyContextFields copies session/turn markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if session, ok := src.Value(sessionKey).(schema.SessionID); ok && session != "" {
		dst = ContextWithSession(dst, session)
	}
	if turn, ok := src.Value(turnKey).(string); ok && turn != "" {
		dst = ContextWithTurn(dst, turn)
	}
	return dst
}
