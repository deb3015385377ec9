package kit

import "context"

type contextKey string

// Context keys shared by the transports. HTTP requests get a trace ID from
// the shield middleware; MCP calls get one from the TraceIDs endpoint
// middleware. Both paths end up readable through the same getters, so the
// SQL tracer and loggers don't care which transport a call arrived on.
const (
	TraceIDKey   contextKey = "kit_trace_id"
	TransportKey contextKey = "kit_transport" // "http" or "mcp"
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport defaults to "http" when unset.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}
