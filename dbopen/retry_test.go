package dbopen

import (
	"context"
	"errors"
	"testing"
)

func TestRetryBusyRetriesOnlyBusyErrors(t *testing.T) {
	busy := errors.New("database is locked")

	calls := 0
	err := retryBusy(context.Background(), func() error {
		calls++
		if calls < 2 {
			return busy
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryBusy: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}

	fatal := errors.New("no such table: capture_jobs")
	calls = 0
	err = retryBusy(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want passthrough", err)
	}
	if calls != 1 {
		t.Fatalf("non-busy error retried %d times", calls)
	}
}

func TestRetryBusyGivesUpAfterMaxAttempts(t *testing.T) {
	busy := errors.New("SQLITE_BUSY")
	calls := 0
	err := retryBusy(context.Background(), func() error {
		calls++
		return busy
	})
	if !errors.Is(err, busy) {
		t.Fatalf("error = %v, want busy", err)
	}
	if calls != busyAttempts {
		t.Fatalf("calls = %d, want %d", calls, busyAttempts)
	}
}

func TestRetryBusyStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryBusy(ctx, func() error {
		calls++
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancel stop", calls)
	}
}
