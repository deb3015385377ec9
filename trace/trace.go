// Package trace records the SQL the conversion service runs, transparently.
//
// It registers a "sqlite-trace" driver that wraps modernc.org/sqlite and
// times every Exec and Query at the database/sql/driver level. The queue
// database is opened through dbopen.WithTrace, so job claims, completions
// and purges all leave trace rows without any call-site changes:
//
//	traceDB, _ := sql.Open("sqlite", "traces.db") // raw driver, no recursion
//	store := trace.NewStore(traceDB)
//	store.Init()
//	trace.SetStore(store)
//
//	queueDB, _ := dbopen.Open("queue.db", dbopen.WithTrace())
//
// With no store set the driver still logs each statement via slog, at Warn
// above the slow-query threshold and Error on failure. Trace IDs flow in
// through the request context (kit.GetTraceID), correlating a slow claim
// with the HTTP request that triggered it.
//
// A worker running next to a central collector can forward its traces
// instead of keeping them: point a RemoteStore at the collector's
// /api/traces endpoint, which is an IngestHandler feeding the collector's
// local Store.
package trace

import (
	"database/sql"
	"sync"

	sqlite "modernc.org/sqlite"
)

// Entry is a single recorded statement. It is also the wire format between
// RemoteStore and IngestHandler.
type Entry struct {
	TraceID    string // correlates with the originating HTTP/MCP request
	Op         string // "Exec" or "Query"
	Query      string
	DurationUs int64
	Error      string // empty on success
	Timestamp  int64  // unix microseconds
}

// Recorder accepts entries from the driver. Store keeps them in a local
// SQLite table; RemoteStore forwards them to a collector.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

var (
	active Recorder
	mu     sync.RWMutex
)

// SetStore installs the recorder the driver writes to. Nil disables
// persistence; statements are then only logged.
func SetStore(r Recorder) {
	mu.Lock()
	active = r
	mu.Unlock()
}

func getStore() Recorder {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

func init() {
	sql.Register("sqlite-trace", &Driver{inner: &sqlite.Driver{}})
}
