package kit

import (
	"context"
	"log/slog"
	"time"
)

// TraceIDs assigns a trace ID to calls that arrive without one, so MCP
// tool invocations correlate in the SQL trace the same way HTTP requests
// do. Existing trace IDs pass through untouched.
func TraceIDs(gen func() string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetTraceID(ctx) == "" {
				ctx = WithTraceID(ctx, gen())
			}
			return next(ctx, req)
		}
	}
}

// Logging logs each call with its outcome and duration under the given
// operation name.
func Logging(logger *slog.Logger, op string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", GetTransport(ctx),
				"trace_id", GetTraceID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Error("endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Info("endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}
