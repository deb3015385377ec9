package observability

import "database/sql"

// Schema is the DDL for the conversion service's monitoring tables. The
// observability database is kept separate from the queue database so metric
// flushes never contend with job claims.
const Schema = `
-- Service liveness with Go runtime stats
CREATE TABLE IF NOT EXISTS service_heartbeats (
    heartbeat_id TEXT PRIMARY KEY DEFAULT ('hb_' || hex(randomblob(16))),
    service_name TEXT NOT NULL,
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    beat_at INTEGER NOT NULL,
    goroutines INTEGER,
    heap_alloc_mb REAL,
    heap_sys_mb REAL,
    gc_cycles INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_heartbeats_service
    ON service_heartbeats(service_name, beat_at DESC);

-- Pipeline metric datapoints (per conversion stage, optionally per job)
CREATE TABLE IF NOT EXISTS pipeline_metrics (
    metric_id TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT '',
    job_id TEXT NOT NULL DEFAULT '',
    recorded_at INTEGER NOT NULL,
    value REAL NOT NULL,
    unit TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_name
    ON pipeline_metrics(metric_name, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_job
    ON pipeline_metrics(job_id) WHERE job_id != '';

-- Capture-job lifecycle events
CREATE TABLE IF NOT EXISTS job_events (
    event_id TEXT PRIMARY KEY,
    event TEXT NOT NULL,
    job_id TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL,
    detail TEXT,
    ok INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_job_events_event ON job_events(event, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id, created_at DESC);

-- Operation-level conversion audit trail
CREATE TABLE IF NOT EXISTS conversion_audit (
    entry_id TEXT PRIMARY KEY,
    recorded_at INTEGER NOT NULL,
    component TEXT NOT NULL,
    operation TEXT NOT NULL,
    job_id TEXT NOT NULL DEFAULT '',
    params TEXT NOT NULL DEFAULT '{}',
    result TEXT,
    error TEXT,
    duration_ms INTEGER,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_audit_time ON conversion_audit(recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_op ON conversion_audit(component, operation);
CREATE INDEX IF NOT EXISTS idx_audit_job ON conversion_audit(job_id) WHERE job_id != '';
`

// Init applies the monitoring schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
