// Package kit provides the transport-agnostic endpoint layer. Business
// logic is written once as an Endpoint and exposed over HTTP or MCP by
// the transport adapters.
package kit

import "context"

// Endpoint is a single RPC-shaped operation.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one listed is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
