package trace

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxIngestBody caps a trace batch POST at 1 MB; a full batcher flush is
// well under that.
const maxIngestBody = 1 << 20

// IngestHandler is the collector side of RemoteStore: satellite workers
// POST JSON batches of entries and this writes them into the local Store.
// The daemon mounts it at /api/traces.
func IngestHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var batch []*Entry
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
		if err := dec.Decode(&batch); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		accepted := 0
		for _, e := range batch {
			if e == nil {
				continue
			}
			store.RecordAsync(e)
			accepted++
		}

		slog.Debug("trace ingest", "entries", accepted)
		w.WriteHeader(http.StatusNoContent)
	}
}
