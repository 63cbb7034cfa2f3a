// Package server exposes the indexer over HTTP: documents are posted as
// plain text and the report comes back in the same format the CLI writes.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/cache"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/job"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/tracing"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunLister reads the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Handler serves the index API. cache and runs may be nil when Redis or
// PostgreSQL are not configured.
type Handler struct {
	runner   *job.Runner
	cache    *cache.ReportCache
	runs     RunLister
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Handler. maxBytes of zero disables the body size limit.
func New(runner *job.Runner, reportCache *cache.ReportCache, runs RunLister, maxBytes int64) *Handler {
	return &Handler{
		runner:   runner,
		cache:    reportCache,
		runs:     runs,
		maxBytes: maxBytes,
		logger:   slog.Default().With("component", "index-handler"),
	}
}

// Index builds the report for the request body.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	workers := 0
	if s := r.URL.Query().Get("workers"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "workers must be an integer")
			return
		}
		workers = n
	}
	cfg := h.runner.EngineConfig(workers)
	if err := cfg.Validate(); err != nil {
		h.writeAppError(w, err)
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	jobID := middleware.GetRequestID(ctx)
	if jobID == "" {
		jobID = tracing.NewTraceID()
	}
	compute := func(ctx context.Context) (*cache.Entry, error) {
		var buf bytes.Buffer
		res, err := h.runner.RunDocument(ctx, job.Job{
			ID:      jobID,
			Source:  job.SourceHTTP,
			Workers: workers,
		}, bytes.NewReader(body), &buf)
		if err != nil {
			return nil, err
		}
		return &cache.Entry{
			Report:      buf.Bytes(),
			Lines:       res.Lines,
			Words:       res.Stats.Words,
			Occurrences: res.Stats.Occurrences,
			Skipped:     res.Skipped,
		}, nil
	}

	var entry *cache.Entry
	cacheHit := false
	if h.cache != nil {
		entry, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(body, cfg), compute)
	} else {
		entry, err = compute(ctx)
	}
	if err != nil {
		log.Error("index request failed", "workers", cfg.Workers, "bytes", len(body), "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("index request completed",
		"workers", cfg.Workers,
		"bytes", len(body),
		"words", entry.Words,
		"cache_hit", cacheHit,
	)

	hdr := w.Header()
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(entry.Report)))
	hdr.Set("X-Index-Workers", strconv.Itoa(cfg.Workers))
	hdr.Set("X-Index-Lines", strconv.Itoa(entry.Lines))
	hdr.Set("X-Index-Words", strconv.Itoa(entry.Words))
	hdr.Set("X-Index-Occurrences", strconv.Itoa(entry.Occurrences))
	hdr.Set("X-Index-Skipped", strconv.Itoa(entry.Skipped))
	if cacheHit {
		hdr.Set("X-Index-Cache", "hit")
	} else {
		hdr.Set("X-Index-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(entry.Report); err != nil {
		log.Warn("failed to write report", "error", err)
	}
}

// Runs lists the most recent runs from the ledger.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
		return
	}
	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// CacheStats reports report cache effectiveness.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.Error("cache stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache stats failed")
		return
	}
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"keys":     stats.Keys,
		"breaker":  stats.Breaker,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops every cached report.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var src io.Reader = r.Body
	if h.maxBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"document exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: reading request body: %v", apperrors.ErrInputUnreadable, err)
	}
	return body, nil
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "index run failed"
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
