package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/idgen"
)

// JobEvent is one step in a capture job's lifecycle.
type JobEvent struct {
	Event  string // "enqueued", "converted", "failed", "acked", "submitted"
	JobID  string
	Origin string // upstream feed job id, when the job came from a feed
	Actor  string // "api", "worker", "feed"
	Detail string // optional JSON
	OK     bool

	CreatedAt time.Time // set on read
}

// EventLog writes job lifecycle events synchronously. Failures are logged
// and swallowed: a broken monitoring database must not fail an enqueue.
type EventLog struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithEventIDGenerator overrides the event ID generator.
func WithEventIDGenerator(gen idgen.Generator) EventLogOption {
	return func(l *EventLog) { l.newID = gen }
}

// NewEventLog creates a log backed by the monitoring database.
func NewEventLog(db *sql.DB, opts ...EventLogOption) *EventLog {
	l := &EventLog{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log records an event.
func (l *EventLog) Log(ctx context.Context, e JobEvent) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO job_events (event_id, event, job_id, origin, actor, detail, ok, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		l.newID(), e.Event, e.JobID, e.Origin, e.Actor, e.Detail, e.OK, time.Now().Unix())
	if err != nil {
		slog.Error("job event log failed", "error", err, "event", e.Event, "job", e.JobID)
	}
}

// Recent returns the newest events, optionally scoped to one job.
func (l *EventLog) Recent(ctx context.Context, jobID string, limit int) ([]JobEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event, job_id, origin, actor, detail, ok, created_at FROM job_events`
	var args []any
	if jobID != "" {
		q += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	var out []JobEvent
	for rows.Next() {
		var e JobEvent
		var detail sql.NullString
		var at int64
		if err := rows.Scan(&e.Event, &e.JobID, &e.Origin, &e.Actor, &detail, &e.OK, &at); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		e.Detail = detail.String
		e.CreatedAt = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
