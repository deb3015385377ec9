package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// RuntimeStats is a point-in-time read of the Go runtime.
type RuntimeStats struct {
	Goroutines  int
	HeapAllocMB float64
	HeapSysMB   float64
	GCCycles    uint32
}

// ReadRuntimeStats samples the runtime. Cheap enough to call per beat.
func ReadRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(mem.Alloc) / 1024 / 1024,
		HeapSysMB:   float64(mem.Sys) / 1024 / 1024,
		GCCycles:    mem.NumGC,
	}
}

// Heartbeat writes periodic liveness rows so an operator can tell a stuck
// service from an idle one.
type Heartbeat struct {
	db       *sql.DB
	service  string
	hostname string
	pid      int
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates a writer for the named service.
func NewHeartbeat(db *sql.DB, service string, interval time.Duration) *Heartbeat {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Heartbeat{
		db:       db,
		service:  service,
		hostname: hostname,
		pid:      os.Getpid(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the beat goroutine: one row immediately, then one per
// interval until Stop or context cancellation.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.loop(ctx)
}

// Beat writes a single row with current runtime stats.
func (h *Heartbeat) Beat() error {
	s := ReadRuntimeStats()
	_, err := h.db.Exec(`
		INSERT INTO service_heartbeats
			(service_name, hostname, pid, beat_at, goroutines, heap_alloc_mb, heap_sys_mb, gc_cycles)
		VALUES (?,?,?,?,?,?,?,?)`,
		h.service, h.hostname, h.pid, time.Now().Unix(),
		s.Goroutines, s.HeapAllocMB, s.HeapSysMB, s.GCCycles)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// Stop ends the beat goroutine and waits for it.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.Beat(); err != nil {
		slog.Error("heartbeat failed", "error", err, "service", h.service)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if err := h.Beat(); err != nil {
				slog.Error("heartbeat failed", "error", err, "service", h.service)
			}
		}
	}
}

// Liveness is the latest heartbeat for a service plus a staleness verdict.
type Liveness struct {
	Service     string    `json:"service"`
	Hostname    string    `json:"hostname"`
	PID         int       `json:"pid"`
	BeatAt      time.Time `json:"beat_at"`
	Goroutines  int       `json:"goroutines"`
	HeapAllocMB float64   `json:"heap_alloc_mb"`
	HeapSysMB   float64   `json:"heap_sys_mb"`
	GCCycles    int       `json:"gc_cycles"`
	Alive       bool      `json:"alive"`
}

// LatestLiveness reads the newest heartbeat for a service. A beat older
// than maxAge (typically 3x the interval) reads as not alive. Returns
// nil, nil when no beat has been written yet.
func LatestLiveness(ctx context.Context, db *sql.DB, service string, maxAge time.Duration) (*Liveness, error) {
	row := db.QueryRowContext(ctx, `
		SELECT service_name, hostname, pid, beat_at, goroutines, heap_alloc_mb, heap_sys_mb, gc_cycles
		FROM service_heartbeats
		WHERE service_name = ?
		ORDER BY beat_at DESC LIMIT 1`, service)

	var lv Liveness
	var at int64
	err := row.Scan(&lv.Service, &lv.Hostname, &lv.PID, &at,
		&lv.Goroutines, &lv.HeapAllocMB, &lv.HeapSysMB, &lv.GCCycles)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query heartbeat: %w", err)
	}
	lv.BeatAt = time.Unix(at, 0)
	lv.Alive = time.Since(lv.BeatAt) <= maxAge
	return &lv, nil
}
