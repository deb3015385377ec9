package trace

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/dbopen"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	store := NewStore(db)
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store, db
}

func countTraces(t *testing.T, db *sql.DB, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM sql_traces"
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestStoreInitCreatesTable(t *testing.T) {
	store, db := newTestStore(t)
	defer store.Close()

	if got := countTraces(t, db, ""); got != 0 {
		t.Fatalf("fresh table has %d rows", got)
	}
}

func TestStoreCloseDrainsBuffer(t *testing.T) {
	store, db := newTestStore(t)

	for i := 0; i < 10; i++ {
		store.RecordAsync(&Entry{
			TraceID:    "trc_claim",
			Op:         "Query",
			Query:      "SELECT 1",
			DurationUs: 42,
			Timestamp:  time.Now().UnixMicro(),
		})
	}
	store.Close()

	if got := countTraces(t, db, "trace_id = ?", "trc_claim"); got != 10 {
		t.Fatalf("got %d rows after close, want 10", got)
	}
}

func TestStoreFlushesFullBatches(t *testing.T) {
	store, db := newTestStore(t)

	// Well past one full batch, so entries land without waiting for Close.
	total := batchSize*2 + 7
	for i := 0; i < total; i++ {
		store.RecordAsync(&Entry{Op: "Exec", Query: "INSERT INTO jobs VALUES (?)", Timestamp: int64(i)})
	}
	store.Close()

	if got := countTraces(t, db, ""); got != total {
		t.Fatalf("got %d rows, want %d", got, total)
	}
}

func TestStoreKeepsErrorText(t *testing.T) {
	store, db := newTestStore(t)

	store.RecordAsync(&Entry{
		Op:        "Exec",
		Query:     "UPDATE capture_jobs SET",
		Error:     "incomplete input",
		Timestamp: time.Now().UnixMicro(),
	})
	store.Close()

	var msg string
	if err := db.QueryRow("SELECT error FROM sql_traces LIMIT 1").Scan(&msg); err != nil {
		t.Fatal(err)
	}
	if msg != "incomplete input" {
		t.Fatalf("error column: got %q", msg)
	}
}

func TestSetStoreSwapsRecorder(t *testing.T) {
	if getStore() != nil {
		t.Fatal("store set before test")
	}

	store, _ := newTestStore(t)
	defer store.Close()

	SetStore(store)
	if getStore() != Recorder(store) {
		t.Fatal("SetStore did not take")
	}

	SetStore(nil)
	if getStore() != nil {
		t.Fatal("SetStore(nil) did not clear")
	}
}

func TestDriverRecordsStatements(t *testing.T) {
	store, traceDB := newTestStore(t)
	SetStore(store)
	defer SetStore(nil)

	db, err := sql.Open("sqlite-trace", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("CREATE TABLE captures (id INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO captures VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	var id int
	if err := db.QueryRow("SELECT id FROM captures").Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("query through traced driver: got %d", id)
	}

	store.Close()
	if got := countTraces(t, traceDB, ""); got == 0 {
		t.Fatal("traced driver recorded nothing")
	}
}

func TestBatcherDropsOnOverflow(t *testing.T) {
	// Loop never started, so everything past the buffer must drop rather
	// than block the caller.
	b := &batcher{
		ch:   make(chan *Entry, 2),
		done: make(chan struct{}),
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.add(&Entry{Op: "Exec", Timestamp: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("add blocked on a full buffer")
	}
	if len(b.ch) != 2 {
		t.Fatalf("buffered %d entries, want 2", len(b.ch))
	}
}
