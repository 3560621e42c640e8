package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const portKey contextKey = 0

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithPort annotates the logger with the device port if present.
func WithPort(ctx context.Context, port string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if port != "" {
		if current, ok := ctx.Value(portKey).(string); ok && current == port {
			return log
		}
		log = log.With("port", port)
	}
	return log
}

// WithRun annotates the logger with a run identifier when available.
func WithRun(log pslog.Logger, runID string) pslog.Logger {
	if runID != "" {
		log = log.With("run", runID)
	}
	return log
}

// ContextWithPort stores the port marker on the context for log de-duplication.
func ContextWithPort(ctx context.Context, port string) context.Context {
	if ctx == nil || port == "" {
		return ctx
	}
	return context.WithValue(ctx, portKey, port)
}

// ContextWithPortLogger attaches the logger and port marker to the context.
func ContextWithPortLogger(ctx context.Context, log pslog.Logger, port string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithPort(ctx, port)
}
