// Package jobs manages the capture job lifecycle: accepting conversion
// requests, handing them to workers with a visibility timeout, and storing
// the prepared result for later retrieval.
//
// The queue is a single SQLite table. A claimed job is invisible to other
// workers for a configurable duration; if the worker crashes or exceeds the
// timeout the job reappears and another instance can claim it. Completed
// jobs keep their result row so clients can poll for it.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/dbopen"
	"github.com/stickerverse/figmacionvert-v3-sub010/httpsafe"
	"github.com/stickerverse/figmacionvert-v3-sub010/idgen"
)

// Job states.
const (
	StatePending = "pending"
	StateDone    = "done"
	StateFailed  = "failed"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("jobs: not found")

// Viewport is the browser viewport a capture was made with.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Job is one capture conversion request.
type Job struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Viewport  Viewport        `json:"viewport"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	State     string          `json:"state"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Attempts  int             `json:"attempts"`
}

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Default: 2m.
	// Conversions of large payloads routinely take tens of seconds.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in the Run loop.
	// Default: 1s.
	PollInterval time.Duration
	// MaxAttempts limits redeliveries before a job is marked failed.
	// Default: 3.
	MaxAttempts int
	// IDs mints job identifiers (default: "job_"-prefixed UUIDv7).
	IDs idgen.Generator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 2 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.IDs == nil {
		o.IDs = idgen.Prefixed("job_", idgen.UUIDv7())
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the job queue handle.
type Queue struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle. Call EnsureSchema once at startup.
func New(db *sql.DB, opts Options) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts}
}

// EnsureSchema creates the capture_jobs table and index if they don't exist.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS capture_jobs (
			id          TEXT PRIMARY KEY,
			origin      TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL,
			viewport_w  INTEGER NOT NULL DEFAULT 0,
			viewport_h  INTEGER NOT NULL DEFAULT 0,
			payload     BLOB,
			result      BLOB,
			state       TEXT NOT NULL DEFAULT 'pending',
			error       TEXT NOT NULL DEFAULT '',
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			submitted   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_capture_jobs_claim
			ON capture_jobs (state, visible_at);
	`)
	return err
}

// Enqueue validates the capture URL and inserts an immediately visible job.
// Returns the minted job id.
func (q *Queue) Enqueue(ctx context.Context, url string, vp Viewport, payload json.RawMessage) (string, error) {
	return q.insert(ctx, "", url, vp, payload)
}

// EnqueueFrom inserts a job that originated on an upstream feed. The origin
// id is kept so the prepared result can be reported back later.
func (q *Queue) EnqueueFrom(ctx context.Context, origin, url string, vp Viewport, payload json.RawMessage) (string, error) {
	return q.insert(ctx, origin, url, vp, payload)
}

func (q *Queue) insert(ctx context.Context, origin, url string, vp Viewport, payload json.RawMessage) (string, error) {
	if err := httpsafe.ValidateURL(url); err != nil {
		return "", err
	}
	id := q.opts.IDs()
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, q.db, `
		INSERT INTO capture_jobs (id, origin, url, viewport_w, viewport_h, payload, visible_at, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		id, origin, url, vp.Width, vp.Height, []byte(payload), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	return id, nil
}

// Claim atomically picks the oldest visible pending job, marks it invisible
// for the configured visibility duration, and returns it. Returns nil, nil
// if no job is available.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE capture_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM capture_jobs
			WHERE state = 'pending' AND visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING id, url, viewport_w, viewport_h, payload, state, error, created_at, attempts`,
		hideUntil, now.UnixMilli(),
	)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

// Complete stores the prepared result and marks the job done.
func (q *Queue) Complete(ctx context.Context, id string, result []byte) error {
	res, err := dbopen.Exec(ctx, q.db,
		`UPDATE capture_jobs SET state = 'done', result = ?, error = '' WHERE id = ?`,
		result, id,
	)
	if err != nil {
		return err
	}
	return ensureHit(res)
}

// Fail records a processing error. Jobs under the attempt limit become
// immediately visible again; jobs at the limit are marked failed.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := dbopen.Exec(ctx, q.db, `
		UPDATE capture_jobs
		SET state    = CASE WHEN attempts >= ? THEN 'failed' ELSE 'pending' END,
		    visible_at = 0,
		    error    = ?
		WHERE id = ? AND state = 'pending'`,
		q.opts.MaxAttempts, msg, id,
	)
	if err != nil {
		return err
	}
	return ensureHit(res)
}

// Extend pushes the visibility timeout forward for a job that needs more
// processing time (heartbeat pattern).
func (q *Queue) Extend(ctx context.Context, id string, extra time.Duration) error {
	hideUntil := time.Now().Add(extra).UnixMilli()
	_, err := dbopen.Exec(ctx, q.db,
		`UPDATE capture_jobs SET visible_at = ? WHERE id = ? AND state = 'pending'`,
		hideUntil, id,
	)
	return err
}

// Get returns the job row without its result blob.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, url, viewport_w, viewport_h, payload, state, error, created_at, attempts
		FROM capture_jobs WHERE id = ?`, id,
	)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// Result returns the stored result for a done job. ErrNotFound covers both
// unknown ids and jobs that have not completed yet.
func (q *Queue) Result(ctx context.Context, id string) ([]byte, error) {
	var result []byte
	err := q.db.QueryRowContext(ctx,
		`SELECT result FROM capture_jobs WHERE id = ? AND state = 'done'`, id,
	).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

// Deliverable is a completed upstream job whose result has not been
// reported back to the feed yet.
type Deliverable struct {
	ID     string
	Origin string
	Result []byte
}

// Unsubmitted lists completed feed jobs awaiting delivery, oldest first.
func (q *Queue) Unsubmitted(ctx context.Context, limit int) ([]Deliverable, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, origin, result FROM capture_jobs
		WHERE state = 'done' AND origin != '' AND submitted = 0
		ORDER BY created_at ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deliverable
	for rows.Next() {
		var d Deliverable
		if err := rows.Scan(&d.ID, &d.Origin, &d.Result); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkSubmitted records that a job's result reached the feed.
func (q *Queue) MarkSubmitted(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, q.db,
		`UPDATE capture_jobs SET submitted = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	return ensureHit(res)
}

// Counts returns the number of jobs per state.
func (q *Queue) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM capture_jobs GROUP BY state`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Purge deletes finished jobs older than the cutoff.
func (q *Queue) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := dbopen.Exec(ctx, q.db,
		`DELETE FROM capture_jobs WHERE state IN ('done','failed') AND created_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var payload []byte
	var creAt int64
	err := row.Scan(&j.ID, &j.URL, &j.Viewport.Width, &j.Viewport.Height,
		&payload, &j.State, &j.Error, &creAt, &j.Attempts)
	if err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}

func ensureHit(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
