package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Busy retry policy. WAL readers never block writers, but two writers
// still collide; the queue's claim/complete statements and the
// observability flushers share the same files, so short contention
// windows are normal. Linear backoff, 100/200/300 ms.
const (
	busyAttempts = 3
	busyBackoff  = 100 * time.Millisecond
)

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// retryBusy runs op, retrying on BUSY with linear backoff. Non-busy errors
// return immediately; the last busy error is returned after the final
// attempt.
func retryBusy(ctx context.Context, op func() error) error {
	var err error
	for i := range busyAttempts {
		if err = op(); err == nil || !IsBusy(err) {
			return err
		}
		if i == busyAttempts-1 {
			break
		}
		t := time.NewTimer(time.Duration(i+1) * busyBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: context cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return err
}

// RunTx executes fn inside a transaction, retrying the whole transaction
// on SQLITE_BUSY. fn must be safe to re-run.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retryBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec executes a single statement, retrying on SQLITE_BUSY.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := retryBusy(ctx, func() error {
		var execErr error
		result, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
