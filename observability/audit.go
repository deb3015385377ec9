package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/idgen"
)

// AuditEntry is one recorded operation: a worker conversion, a feed pull,
// a purge. Params and Result hold JSON.
type AuditEntry struct {
	EntryID    string
	RecordedAt time.Time
	Component  string // "worker", "feed", "api"
	Operation  string // "convert", "pull", "push", "purge"
	JobID      string
	Params     string
	Result     string
	Error      string
	DurationMs int64
	Status     string // "success" or "error"
}

// AuditFilter narrows a Query. Zero fields match everything.
type AuditFilter struct {
	Since     time.Time
	Until     time.Time
	Component string
	Operation string
	Status    string
	Limit     int // default 100
}

// AuditLog persists operation entries asynchronously through a buffered
// channel; a full buffer falls back to a synchronous insert.
type AuditLog struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *AuditEntry
	stop  chan struct{}
	done  chan struct{}
}

// AuditOption configures an AuditLog.
type AuditOption func(*AuditLog)

// WithAuditIDGenerator overrides the entry ID generator.
func WithAuditIDGenerator(gen idgen.Generator) AuditOption {
	return func(a *AuditLog) { a.newID = gen }
}

// NewAuditLog starts the flush goroutine. Buffer a few hundred entries.
func NewAuditLog(db *sql.DB, buffer int, opts ...AuditOption) *AuditLog {
	a := &AuditLog{
		db:    db,
		newID: idgen.Prefixed("audit_", idgen.Default),
		ch:    make(chan *AuditEntry, buffer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	go a.flushLoop()
	return a
}

// Entry builds an AuditEntry from an operation's inputs and outcome.
// Params and result are marshalled to JSON; err wins over result.
func (a *AuditLog) Entry(component, operation, jobID string, params, result any, err error, d time.Duration) *AuditEntry {
	e := &AuditEntry{
		EntryID:    a.newID(),
		RecordedAt: time.Now(),
		Component:  component,
		Operation:  operation,
		JobID:      jobID,
		DurationMs: d.Milliseconds(),
	}
	if params != nil {
		if b, mErr := json.Marshal(params); mErr == nil {
			e.Params = string(b)
		}
	}
	if err != nil {
		e.Status = "error"
		e.Error = err.Error()
		return e
	}
	e.Status = "success"
	if result != nil {
		if b, mErr := json.Marshal(result); mErr == nil {
			e.Result = string(b)
		}
	}
	return e
}

// Log inserts synchronously.
func (a *AuditLog) Log(ctx context.Context, e *AuditEntry) error {
	a.fillDefaults(e)
	return a.insert(ctx, e)
}

// LogAsync queues an entry; when the buffer is full it inserts inline so
// the entry is never lost.
func (a *AuditLog) LogAsync(e *AuditEntry) {
	a.fillDefaults(e)
	select {
	case a.ch <- e:
	default:
		slog.Warn("audit buffer full, inserting inline", "component", e.Component)
		if err := a.insert(context.Background(), e); err != nil {
			slog.Error("audit inline insert failed", "error", err)
		}
	}
}

// Query returns entries matching the filter, newest first.
func (a *AuditLog) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	var cond []string
	var args []any
	if !f.Since.IsZero() {
		cond = append(cond, "recorded_at >= ?")
		args = append(args, f.Since.Unix())
	}
	if !f.Until.IsZero() {
		cond = append(cond, "recorded_at <= ?")
		args = append(args, f.Until.Unix())
	}
	if f.Component != "" {
		cond = append(cond, "component = ?")
		args = append(args, f.Component)
	}
	if f.Operation != "" {
		cond = append(cond, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		cond = append(cond, "status = ?")
		args = append(args, f.Status)
	}

	q := `SELECT entry_id, recorded_at, component, operation, job_id,
		params, result, error, duration_ms, status FROM conversion_audit`
	if len(cond) > 0 {
		q += " WHERE " + strings.Join(cond, " AND ")
	}
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY recorded_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var at int64
		var result, errMsg sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&e.EntryID, &at, &e.Component, &e.Operation, &e.JobID,
			&e.Params, &result, &errMsg, &dur, &e.Status); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.RecordedAt = time.Unix(at, 0)
		e.Result = result.String
		e.Error = errMsg.String
		e.DurationMs = dur.Int64
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than the retention window.
func (a *AuditLog) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := a.db.ExecContext(ctx, "DELETE FROM conversion_audit WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (a *AuditLog) Close() error {
	close(a.stop)
	<-a.done
	return nil
}

func (a *AuditLog) fillDefaults(e *AuditEntry) {
	if e.EntryID == "" {
		e.EntryID = a.newID()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (a *AuditLog) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*AuditEntry, 0, 64)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, e := range batch {
			if err := a.insert(ctx, e); err != nil {
				slog.Error("audit flush failed", "error", err, "entry", e.EntryID)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-a.stop:
			for {
				select {
				case e := <-a.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-a.ch:
			batch = append(batch, e)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (a *AuditLog) insert(ctx context.Context, e *AuditEntry) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO conversion_audit
		(entry_id, recorded_at, component, operation, job_id,
		 params, result, error, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.RecordedAt.Unix(), e.Component, e.Operation, e.JobID,
		e.Params, e.Result, e.Error, e.DurationMs, e.Status)
	return err
}
