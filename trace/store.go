package trace

import (
	"database/sql"
	"log/slog"
)

// Schema for the sql_traces table. Store.Init applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS sql_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT,
	op TEXT NOT NULL,
	query TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sql_traces_ts ON sql_traces(timestamp);
CREATE INDEX IF NOT EXISTS idx_sql_traces_tid ON sql_traces(trace_id) WHERE trace_id != '';
CREATE INDEX IF NOT EXISTS idx_sql_traces_slow ON sql_traces(duration_us) WHERE duration_us > 100000;
`

// Store persists entries to a local SQLite table. Open its db with the raw
// "sqlite" driver, never "sqlite-trace" — tracing the trace writes would
// recurse.
type Store struct {
	db *sql.DB
	b  *batcher
}

// NewStore starts the flush goroutine immediately; call Init before the
// first entry arrives.
func NewStore(db *sql.DB) *Store {
	s := &Store{db: db}
	s.b = startBatcher(s.write)
	return s
}

// Init creates the sql_traces table.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry. Non-blocking; drops when the buffer is full.
func (s *Store) RecordAsync(e *Entry) { s.b.add(e) }

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.b.close()
	return nil
}

func (s *Store) write(batch []*Entry) {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("trace store: begin tx", "error", err)
		return
	}
	stmt, err := tx.Prepare(`INSERT INTO sql_traces (trace_id, op, query, duration_us, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("trace store: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.TraceID, e.Op, e.Query, e.DurationUs, e.Error, e.Timestamp); err != nil {
			slog.Error("trace store: insert", "error", err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("trace store: commit", "error", err)
	}
}
