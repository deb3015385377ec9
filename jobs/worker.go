package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/convert"
	"github.com/stickerverse/figmacionvert-v3-sub010/observability"
)

// Worker drains the queue: it decodes each claimed job's capture payload,
// runs the conversion service, and stores the prepared result.
type Worker struct {
	queue   *Queue
	svc     *convert.Service
	logger  *slog.Logger
	audit   *observability.AuditLog
	metrics *observability.Recorder
	wake    chan struct{}
}

// WorkerOption configures optional worker collaborators.
type WorkerOption func(*Worker)

// WithAudit attaches an audit log; every processed job gets an entry with
// its parameters, outcome, and duration.
func WithAudit(a *observability.AuditLog) WorkerOption {
	return func(w *Worker) { w.audit = a }
}

// WithMetrics attaches a metrics recorder; each processed job emits a
// duration datapoint and bumps the processed counter.
func WithMetrics(r *observability.Recorder) WorkerOption {
	return func(w *Worker) { w.metrics = r }
}

// NewWorker creates a worker bound to a queue and conversion service.
func NewWorker(q *Queue, svc *convert.Service, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		queue:  q,
		svc:    svc,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wake nudges the worker to drain immediately instead of waiting for the
// next poll tick. Non-blocking; safe from any goroutine. Wire it as a
// watch.Watcher wake function so enqueues are picked up promptly.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls for visible jobs and converts them until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("jobs: worker started",
		"visibility", w.queue.opts.Visibility,
		"poll", w.queue.opts.PollInterval,
	)

	ticker := time.NewTicker(w.queue.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("jobs: worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		job, err := w.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("jobs: claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return // nothing visible
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	start := time.Now()

	result, err := w.convertJob(ctx, job)
	took := time.Since(start)
	w.auditJob(job, len(result), err, took)
	if w.metrics != nil {
		w.metrics.Duration(observability.MetricConvertDuration, job.ID, took)
		if err == nil {
			w.metrics.Count(observability.MetricJobsProcessed, 1)
		}
	}
	if err != nil {
		w.logger.Warn("jobs: conversion failed",
			"id", job.ID, "url", job.URL, "attempts", job.Attempts, "error", err)
		if ferr := w.queue.Fail(ctx, job.ID, err); ferr != nil {
			w.logger.Error("jobs: fail update lost", "id", job.ID, "error", ferr)
		}
		return
	}

	if err := w.queue.Complete(ctx, job.ID, result); err != nil {
		w.logger.Error("jobs: complete update lost", "id", job.ID, "error", err)
		return
	}
	w.logger.Info("jobs: job done",
		"id", job.ID, "url", job.URL,
		"duration", time.Since(start).Round(time.Millisecond),
		"result_bytes", len(result),
	)
}

func (w *Worker) auditJob(job *Job, resultBytes int, err error, took time.Duration) {
	if w.audit == nil {
		return
	}
	params := map[string]any{"url": job.URL, "attempts": job.Attempts}
	var result any
	if err == nil {
		result = map[string]any{"result_bytes": resultBytes}
	}
	w.audit.LogAsync(w.audit.Entry("worker", "convert", job.ID, params, result, err, took))
}

func (w *Worker) convertJob(ctx context.Context, job *Job) ([]byte, error) {
	if len(job.Payload) == 0 {
		return nil, fmt.Errorf("jobs: job %s has no payload", job.ID)
	}
	var p archive.Payload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("jobs: decode payload: %w", err)
	}
	prep, err := w.svc.Convert(ctx, &p)
	if err != nil {
		return nil, err
	}
	result, err := json.Marshal(prep)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode result: %w", err)
	}
	return result, nil
}
