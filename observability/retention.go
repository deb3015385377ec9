package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Retention sets per-table windows in days. Zero skips a table.
type Retention struct {
	MetricsDays    int
	EventsDays     int
	AuditDays      int
	HeartbeatsDays int
	Vacuum         bool
}

// Cleanup prunes monitoring tables past their retention windows.
func Cleanup(ctx context.Context, db *sql.DB, r Retention) error {
	now := time.Now().Unix()
	prune := []struct {
		table  string
		column string
		days   int
	}{
		{"pipeline_metrics", "recorded_at", r.MetricsDays},
		{"job_events", "created_at", r.EventsDays},
		{"conversion_audit", "recorded_at", r.AuditDays},
		{"service_heartbeats", "beat_at", r.HeartbeatsDays},
	}
	for _, p := range prune {
		if p.days <= 0 {
			continue
		}
		cutoff := now - int64(p.days)*86400
		// Table and column names come from the fixed list above, never
		// from input.
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", p.table, p.column)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", p.table, err)
		}
	}
	if r.Vacuum {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}
