// Package watch nudges the conversion worker when capture jobs land in the
// queue database from another connection. SQLite has no cross-connection
// notification primitive, so the watcher polls a cheap version token —
// PRAGMA data_version by default, which increments whenever another
// connection writes the file — and folds bursts of enqueues into a single
// wakeup.
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a version token from the queue database. Two calls that
// return different values mean a write happened in between.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// PragmaDataVersion increments whenever another connection writes the same
// database file. It misses writes made on the polling connection itself,
// which is fine here: local enqueues wake the worker directly.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// JobArrivals tracks the highest rowid in the capture_jobs table, so only
// inserts register as changes. Completions and submission flags on the same
// file bump data_version but never this.
func JobArrivals(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(rowid), 0) FROM capture_jobs").Scan(&v)
	return v, err
}

// Options tunes the polling loop.
type Options struct {
	// Interval between detector reads. Default: 1s.
	Interval time.Duration
	// Debounce holds a detected change back until the database has been
	// quiet for the window, so an enqueue burst wakes the worker once.
	// 0 wakes immediately.
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion.
	Detector Detector
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls the queue database and calls a wake function when new work
// may have arrived. Spurious wakeups are acceptable: the worker drains the
// queue and goes back to sleep.
type Watcher struct {
	db   *sql.DB
	opts Options

	last    atomic.Int64
	polls   atomic.Int64
	wakeups atomic.Int64
	errors  atomic.Int64
}

// Stats is a point-in-time counter snapshot for the stats endpoint.
type Stats struct {
	Polls   int64 `json:"polls"`
	Wakeups int64 `json:"wakeups"`
	Errors  int64 `json:"errors"`
	Version int64 `json:"version"`
}

// New creates a Watcher. Call Run to start the loop.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

func (w *Watcher) Stats() Stats {
	return Stats{
		Polls:   w.polls.Load(),
		Wakeups: w.wakeups.Load(),
		Errors:  w.errors.Load(),
		Version: w.last.Load(),
	}
}

// Run blocks until ctx is cancelled. Each interval it reads the version
// token; when the token moves and the debounce window passes without
// further movement, wake is called once.
func (w *Watcher) Run(ctx context.Context, wake func()) {
	log := w.opts.Logger

	// Seed so pre-existing jobs don't register as a change; the worker
	// drains the backlog on startup anyway.
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: seed version read failed", "error", err)
	} else {
		w.last.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var quiet *time.Timer
	var quietC <-chan time.Time
	armed := false

	log.Info("watch: polling queue", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if quiet != nil {
				quiet.Stop()
			}
			log.Info("watch: stopped")
			return

		case <-ticker.C:
			w.polls.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version read failed", "error", err)
				continue
			}
			if cur == w.last.Load() {
				continue
			}
			w.last.Store(cur)
			if w.opts.Debounce <= 0 {
				w.wake(log, wake)
				continue
			}
			// Push the wakeup out while writes keep arriving.
			if quiet != nil {
				quiet.Stop()
			}
			quiet = time.NewTimer(w.opts.Debounce)
			quietC = quiet.C
			armed = true

		case <-quietC:
			quietC = nil
			if armed {
				armed = false
				w.wake(log, wake)
			}
		}
	}
}

func (w *Watcher) wake(log *slog.Logger, wake func()) {
	w.wakeups.Add(1)
	log.Debug("watch: waking worker", "version", w.last.Load())
	wake()
}
