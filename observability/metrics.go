// Package observability records what the conversion service is doing in the
// same place it keeps everything else: SQLite. Pipeline metrics, capture-job
// lifecycle events, an operation audit trail, and liveness heartbeats all
// land in one monitoring database, separate from the queue database so
// flushes never contend with job claims.
//
// Call Init on the shared *sql.DB first, then pass it to the constructors.
// Writes that buffer (metrics, audit) are async and non-blocking: a full
// buffer degrades, it never applies backpressure to a running conversion.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Names of the metrics the service emits. Stages of the conversion pipeline
// carry their own rows under the same name, discriminated by the stage
// column.
const (
	MetricConvertDuration  = "convert_duration_ms"
	MetricJobsProcessed    = "jobs_processed"
	MetricCompactSavedMB   = "compact_saved_mb"
	MetricPatternsPromoted = "patterns_promoted"
	MetricNodesRemoved     = "nodes_removed"
)

// Metric is one pipeline datapoint. Stage and JobID are optional; service
// level counters leave both empty.
type Metric struct {
	Name  string
	Stage string
	JobID string
	At    time.Time
	Value float64
	Unit  string
}

// Recorder buffers pipeline metrics and flushes them to SQLite in batches.
type Recorder struct {
	db       *sql.DB
	capacity int
	interval time.Duration

	mu      sync.Mutex
	pending []Metric

	stop chan struct{}
	done chan struct{}
}

// NewRecorder starts the flush loop. A capacity of 256 and an interval of a
// few seconds are plenty for this service's volume.
func NewRecorder(db *sql.DB, capacity int, interval time.Duration) *Recorder {
	r := &Recorder{
		db:       db,
		capacity: capacity,
		interval: interval,
		pending:  make([]Metric, 0, capacity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues a datapoint. Non-blocking; a full buffer triggers an inline
// flush.
func (r *Recorder) Record(m Metric) {
	if m.At.IsZero() {
		m.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, m)
	if len(r.pending) >= r.capacity {
		r.flushLocked()
	}
}

// Duration records a job-scoped timing metric in milliseconds.
func (r *Recorder) Duration(name, jobID string, d time.Duration) {
	r.Record(Metric{Name: name, JobID: jobID, Value: float64(d.Milliseconds()), Unit: "milliseconds"})
}

// Count records a service-level counter increment.
func (r *Recorder) Count(name string, n float64) {
	r.Record(Metric{Name: name, Value: n, Unit: "count"})
}

// Query returns datapoints for a metric, newest first. An empty name matches
// every metric; since/until of zero mean unbounded.
func (r *Recorder) Query(name string, since, until time.Time, limit int) ([]Metric, error) {
	var cond []string
	var args []any
	if name != "" {
		cond = append(cond, "metric_name = ?")
		args = append(args, name)
	}
	if !since.IsZero() {
		cond = append(cond, "recorded_at >= ?")
		args = append(args, since.Unix())
	}
	if !until.IsZero() {
		cond = append(cond, "recorded_at <= ?")
		args = append(args, until.Unix())
	}

	q := "SELECT metric_name, stage, job_id, recorded_at, value, unit FROM pipeline_metrics"
	if len(cond) > 0 {
		q += " WHERE " + strings.Join(cond, " AND ")
	}
	q += " ORDER BY recorded_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		var at int64
		var unit sql.NullString
		if err := rows.Scan(&m.Name, &m.Stage, &m.JobID, &at, &m.Value, &unit); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.At = time.Unix(at, 0)
		m.Unit = unit.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than the retention window.
func (r *Recorder) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := r.db.ExecContext(ctx, "DELETE FROM pipeline_metrics WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes what remains and stops the loop.
func (r *Recorder) Close() error {
	close(r.stop)
	<-r.done
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
			return
		case <-ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) flushLocked() {
	if len(r.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("metrics flush: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pipeline_metrics (metric_name, stage, job_id, recorded_at, value, unit)
		 VALUES (?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("metrics flush: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, m := range r.pending {
		if _, err := stmt.ExecContext(ctx, m.Name, m.Stage, m.JobID, m.At.Unix(), m.Value, m.Unit); err != nil {
			slog.Error("metrics flush: insert", "error", err, "metric", m.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("metrics flush: commit", "error", err)
	}
	r.pending = r.pending[:0]
}
