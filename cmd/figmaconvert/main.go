package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/convert"
	"github.com/stickerverse/figmacionvert-v3-sub010/dbopen"
	"github.com/stickerverse/figmacionvert-v3-sub010/httpsafe"
	"github.com/stickerverse/figmacionvert-v3-sub010/jobs"
	"github.com/stickerverse/figmacionvert-v3-sub010/observability"
	"github.com/stickerverse/figmacionvert-v3-sub010/shield"
	"github.com/stickerverse/figmacionvert-v3-sub010/trace"
	"github.com/stickerverse/figmacionvert-v3-sub010/watch"
)

func main() {
	configPath := flag.String("config", "", "path to figmaconvert.yaml config file")
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	maxBody := cfg.MaxPayloadBytes()

	apiToken := os.Getenv("API_TOKEN")
	if apiToken == "" {
		slog.Error("API_TOKEN is required")
		os.Exit(1)
	}
	if err := httpsafe.ValidateSecret([]byte(apiToken)); err != nil {
		slog.Error("API_TOKEN too weak", "error", err)
		os.Exit(1)
	}
	// Only the bcrypt hash is kept in memory after startup.
	tokenHash, err := bcrypt.GenerateFromPassword([]byte(apiToken), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("hash API token", "error", err)
		os.Exit(1)
	}
	apiToken = ""

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Traces go to a local DB, or to a remote collector when this instance
	// runs as a satellite worker.
	var traceStore *trace.Store
	if cfg.TraceRemote != "" {
		remote := trace.NewRemoteStore(cfg.TraceRemote, nil)
		trace.SetStore(remote)
		defer remote.Close()
	} else {
		// Opened with the raw "sqlite" driver (never "sqlite-trace" to avoid recursion).
		traceDB, err := dbopen.Open(cfg.TraceDB, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("trace db", "error", err)
			os.Exit(1)
		}
		defer traceDB.Close()
		traceStore = trace.NewStore(traceDB)
		if err := traceStore.Init(); err != nil {
			slog.Error("trace init", "error", err)
			os.Exit(1)
		}
		trace.SetStore(traceStore)
		defer traceStore.Close()
	}

	// Queue DB — traced.
	queueDB, err := dbopen.Open(cfg.QueueDB, dbopen.WithMkdirAll(), dbopen.WithTrace())
	if err != nil {
		slog.Error("queue db", "error", err)
		os.Exit(1)
	}
	defer queueDB.Close()

	// Observability DB (separate file to avoid write contention).
	obsDB, err := dbopen.Open(cfg.ObsDB, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}
	events := observability.NewEventLog(obsDB)
	metrics := observability.NewRecorder(obsDB, 256, 5*time.Second)
	defer metrics.Close()
	auditLog := observability.NewAuditLog(obsDB, 256)
	defer auditLog.Close()
	heartbeat := observability.NewHeartbeat(obsDB, "figmaconvert", 30*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	// Conversion service and queue.
	svc := convert.New(convert.Config{TargetMB: cfg.TargetMB, Logger: logger})
	queue := jobs.New(queueDB, jobs.Options{Logger: logger})
	if err := queue.EnsureSchema(ctx); err != nil {
		slog.Error("queue schema", "error", err)
		os.Exit(1)
	}

	// Worker with SQLite change-driven wakeup: the watcher polls for new
	// capture_jobs rows and nudges the worker when inserts land.
	worker := jobs.NewWorker(queue, svc, logger, jobs.WithAudit(auditLog), jobs.WithMetrics(metrics))
	go worker.Run(ctx)
	watcher := watch.New(queueDB, watch.Options{
		Interval: 500 * time.Millisecond,
		Detector: watch.JobArrivals,
		Logger:   logger,
	})
	go watcher.Run(ctx, worker.Wake)

	// Optional upstream feed: pull jobs periodically and push results back.
	if cfg.Upstream.URL != "" {
		upstream, err := jobs.NewUpstream(jobs.UpstreamConfig{BaseURL: cfg.Upstream.URL, Token: cfg.Upstream.Token})
		if err != nil {
			slog.Error("upstream", "error", err)
			os.Exit(1)
		}
		go pollUpstream(ctx, upstream, queue, logger, time.Duration(cfg.Upstream.PollInterval)*time.Second)
	}

	// Optional MCP over stdio.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "figmaconvert",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	requireToken := tokenMiddleware(tokenHash)

	// Router. The shield tables (rate limits, maintenance flag) live in the
	// queue DB; operators flip them with plain UPDATEs.
	if err := shield.Init(queueDB); err != nil {
		slog.Error("shield schema", "error", err)
		os.Exit(1)
	}
	stack, mm := shield.DefaultAPIStack(queueDB, maxBody)
	mm.StartReloader(ctx.Done())

	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		counts, err := queue.Counts(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"status": "ok", "jobs": counts})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireToken)

		// Accept a capture payload (raw JSON or zip capture archive) and
		// queue it for conversion.
		r.Post("/api/captures", func(w http.ResponseWriter, r *http.Request) {
			data, err := httpsafe.LimitedReadAll(r.Body, maxBody)
			if err != nil {
				writeError(w, 413, err)
				return
			}
			capt, err := archive.Read(data)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			payload, err := json.Marshal(capt.Payload)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			url := r.URL.Query().Get("url")
			if url == "" {
				url = "https://unknown.invalid/"
			}
			vp := jobs.Viewport{
				Width:  capt.Manifest.Viewport.Width,
				Height: capt.Manifest.Viewport.Height,
			}
			id, err := queue.Enqueue(r.Context(), url, vp, payload)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			worker.Wake()
			events.Log(r.Context(), observability.JobEvent{
				Event: "enqueued",
				JobID: id,
				Actor: "api",
				OK:    true,
			})
			writeJSON(w, 202, map[string]string{"id": id, "state": jobs.StatePending})
		})

		// Synchronous conversion for small payloads: no queue round trip.
		r.Post("/api/convert", func(w http.ResponseWriter, r *http.Request) {
			data, err := httpsafe.LimitedReadAll(r.Body, maxBody)
			if err != nil {
				writeError(w, 413, err)
				return
			}
			capt, err := archive.Read(data)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			start := time.Now()
			prep, err := svc.Convert(r.Context(), &capt.Payload)
			if err != nil {
				if errors.Is(err, convert.ErrNoTree) {
					writeError(w, 400, err)
					return
				}
				writeError(w, 500, err)
				return
			}
			metrics.Duration(observability.MetricConvertDuration, "", time.Since(start))
			writeJSON(w, 200, prep)
		})

		r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			job, err := queue.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, jobs.ErrNotFound) {
					writeError(w, 404, err)
					return
				}
				writeError(w, 500, err)
				return
			}
			job.Payload = nil // don't echo megabytes of capture data
			writeJSON(w, 200, job)
		})

		r.Get("/api/jobs/{id}/result", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			result, err := queue.Result(r.Context(), id)
			if err != nil {
				if errors.Is(err, jobs.ErrNotFound) {
					writeError(w, 404, err)
					return
				}
				writeError(w, 500, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(200)
			w.Write(result)
		})

		// External consumers (a design-tool plugin, typically) may drain
		// the queue themselves instead of relying on the embedded worker.
		// Claimed jobs reappear after the visibility window if never acked.
		r.Get("/api/jobs/next", func(w http.ResponseWriter, r *http.Request) {
			job, err := queue.Claim(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if job == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, 200, job)
		})

		r.Post("/api/jobs/{id}/ack", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			result, err := httpsafe.LimitedReadAll(r.Body, maxBody)
			if err != nil {
				writeError(w, 413, err)
				return
			}
			if len(result) == 0 {
				result = []byte("{}")
			}
			if err := queue.Complete(r.Context(), id, result); err != nil {
				if errors.Is(err, jobs.ErrNotFound) {
					writeError(w, 404, err)
					return
				}
				writeError(w, 500, err)
				return
			}
			events.Log(r.Context(), observability.JobEvent{
				Event: "acked",
				JobID: id,
				Actor: "api",
				OK:    true,
			})
			w.WriteHeader(http.StatusNoContent)
		})

		// Collector endpoint for satellite workers configured with a
		// remote trace store.
		if traceStore != nil {
			r.Post("/api/traces", trace.IngestHandler(traceStore))
		}

		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			counts, err := queue.Counts(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			liveness, err := observability.LatestLiveness(r.Context(), obsDB, "figmaconvert", 90*time.Second)
			if err != nil {
				logger.Warn("liveness read failed", "error", err)
			}
			recent, err := events.Recent(r.Context(), "", 20)
			if err != nil {
				logger.Warn("recent events read failed", "error", err)
			}
			writeJSON(w, 200, map[string]any{
				"jobs":     counts,
				"watch":    watcher.Stats(),
				"liveness": liveness,
				"events":   recent,
			})
		})
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// pollUpstream pulls jobs from the feed and submits finished results back.
func pollUpstream(ctx context.Context, upstream *jobs.Upstream, queue *jobs.Queue, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pulled, err := upstream.Pull(ctx, queue)
			if err != nil && ctx.Err() == nil {
				logger.Warn("upstream pull", "error", err)
			}
			sent, err := upstream.Push(ctx, queue)
			if err != nil && ctx.Err() == nil {
				logger.Warn("upstream push", "error", err)
			}
			if pulled > 0 || sent > 0 {
				logger.Info("upstream sync", "pulled", pulled, "sent", sent)
			}
		}
	}
}

// tokenMiddleware enforces a Bearer token. Only the bcrypt hash of the
// configured token survives startup.
func tokenMiddleware(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if len(auth) <= len(prefix) || subtle.ConstantTimeCompare([]byte(auth[:len(prefix)]), []byte(prefix)) != 1 {
				writeJSON(w, 401, map[string]string{"error": "missing bearer token"})
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(auth[len(prefix):])); err != nil {
				writeJSON(w, 401, map[string]string{"error": "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

