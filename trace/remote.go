package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// RemoteStore forwards entries to a collector over HTTP instead of keeping
// them locally. A satellite worker points it at the collector's /api/traces
// endpoint:
//
//	rs := trace.NewRemoteStore("https://collector.example.com/api/traces", nil)
//	trace.SetStore(rs)
//	defer rs.Close()
type RemoteStore struct {
	url    string
	client *http.Client
	b      *batcher
}

// NewRemoteStore creates a forwarder. A nil client gets a 5s timeout.
func NewRemoteStore(url string, client *http.Client) *RemoteStore {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	rs := &RemoteStore{url: url, client: client}
	rs.b = startBatcher(rs.push)
	return rs
}

// RecordAsync queues an entry. Non-blocking; drops when the buffer is full.
func (rs *RemoteStore) RecordAsync(e *Entry) { rs.b.add(e) }

// Close drains the buffer and stops the flush goroutine.
func (rs *RemoteStore) Close() error {
	rs.b.close()
	return nil
}

func (rs *RemoteStore) push(batch []*Entry) {
	body, err := json.Marshal(batch)
	if err != nil {
		slog.Error("trace remote: marshal", "error", err)
		return
	}
	resp, err := rs.client.Post(rs.url, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Error("trace remote: post", "error", err, "url", rs.url, "entries", len(batch))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		slog.Error("trace remote: post rejected", "status", resp.StatusCode, "entries", len(batch))
	}
}
