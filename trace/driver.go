package trace

import (
	"context"
	"database/sql/driver"
	"log/slog"
	"strings"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/kit"
)

const (
	// slowQuery is where a statement stops being Debug noise and becomes
	// a Warn: a claim or flush past this is worth an operator's attention.
	slowQuery = 100 * time.Millisecond

	// pragmaFloor filters the watcher's data_version polls out of the
	// trace unless one of them is unexpectedly slow.
	pragmaFloor = 10 * time.Millisecond
)

// Driver wraps modernc.org/sqlite, timing every statement. Registered as
// "sqlite-trace" in init; dbopen.WithTrace selects it.
type Driver struct {
	inner driver.Driver
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	conn, err := d.inner.Open(name)
	if err != nil {
		return nil, err
	}
	return &tracedConn{inner: conn}, nil
}

type tracedConn struct {
	inner driver.Conn
}

func (c *tracedConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.inner.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &tracedStmt{inner: stmt, query: query}, nil
}

func (c *tracedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if pc, ok := c.inner.(driver.ConnPrepareContext); ok {
		stmt, err := pc.PrepareContext(ctx, query)
		if err != nil {
			return nil, err
		}
		return &tracedStmt{inner: stmt, query: query}, nil
	}
	return c.Prepare(query)
}

func (c *tracedConn) Begin() (driver.Tx, error) { return c.inner.Begin() }

func (c *tracedConn) Close() error { return c.inner.Close() }

type tracedStmt struct {
	inner driver.Stmt
	query string
}

func (s *tracedStmt) Close() error { return s.inner.Close() }

func (s *tracedStmt) NumInput() int { return s.inner.NumInput() }

func (s *tracedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var result driver.Result
	var err error
	if ec, ok := s.inner.(driver.StmtExecContext); ok {
		result, err = ec.ExecContext(ctx, args)
	} else {
		result, err = s.inner.Exec(flatten(args))
	}
	s.observe(ctx, "Exec", time.Since(start), err)
	return result, err
}

func (s *tracedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var rows driver.Rows
	var err error
	if qc, ok := s.inner.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		rows, err = s.inner.Query(flatten(args))
	}
	s.observe(ctx, "Query", time.Since(start), err)
	return rows, err
}

func (s *tracedStmt) Exec(args []driver.Value) (driver.Result, error) {
	start := time.Now()
	result, err := s.inner.Exec(args)
	s.observe(context.Background(), "Exec", time.Since(start), err)
	return result, err
}

func (s *tracedStmt) Query(args []driver.Value) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.inner.Query(args)
	s.observe(context.Background(), "Query", time.Since(start), err)
	return rows, err
}

func (s *tracedStmt) observe(ctx context.Context, op string, d time.Duration, err error) {
	if err == nil && d < pragmaFloor && strings.HasPrefix(s.query, "PRAGMA ") {
		return
	}

	traceID := kit.GetTraceID(ctx)

	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelError
	case d > slowQuery:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("component", "sql"),
		slog.String("op", op),
		slog.String("query", s.query),
		slog.Duration("duration", d),
	}
	if traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.LogAttrs(ctx, level, "SQL", attrs...)

	if store := getStore(); store != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		store.RecordAsync(&Entry{
			TraceID:    traceID,
			Op:         op,
			Query:      s.query,
			DurationUs: d.Microseconds(),
			Error:      errMsg,
			Timestamp:  time.Now().UnixMicro(),
		})
	}
}

func flatten(named []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(named))
	for i, nv := range named {
		vals[i] = nv.Value
	}
	return vals
}
