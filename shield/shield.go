// Package shield provides reusable HTTP middleware for JSON API services.
// It consolidates security headers, rate limiting, body limits, request
// tracing, maintenance mode, and HEAD method handling into a single
// importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(64 << 20))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db).Middleware)
//
// Or apply the default stack in one call:
//
//	stack, mm := shield.DefaultAPIStack(db, 64<<20)
//	mm.StartReloader(done)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the standard middleware stack for a token-guarded
// JSON API. Middleware is ordered: Maintenance, HeadToGet, SecurityHeaders,
// MaxBody, TraceID, RateLimiter. The returned MaintenanceMode handle lets
// callers start the flag reloader. Health checks (/healthz) bypass both
// maintenance mode and rate limiting.
func DefaultAPIStack(db *sql.DB, maxBody int64) ([]func(http.Handler) http.Handler, *MaintenanceMode) {
	rl := NewRateLimiter(db, "/healthz")
	mm := NewMaintenanceMode(db, "/healthz")
	return []func(http.Handler) http.Handler{
		mm.Middleware,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
		rl.Middleware,
	}, mm
}
