// Package handler serves the proximity search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/resilience"
)

// CacheHeader reports whether a proximity response came from the cache.
const CacheHeader = "X-Cache"

type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, q *parser.Query, dir proximity.Direction) (*executor.SearchResult, error)
}

type Handler struct {
	executor     QueryExecutor
	engine       *indexer.Engine
	cache        *cache.QueryCache
	tracker      analytics.Tracker
	metrics      *metrics.Metrics
	defaultMode  proximity.Direction
	queryTimeout time.Duration
	logger       *slog.Logger
}

// New wires the API handlers. queryCache, tracker and m may each be nil to
// disable caching, analytics or query metrics.
func New(
	exec QueryExecutor,
	engine *indexer.Engine,
	queryCache *cache.QueryCache,
	tracker analytics.Tracker,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	mode, err := proximity.ParseDirection(cfg.DefaultMode)
	if err != nil {
		mode = proximity.Bidirectional
	}
	return &Handler{
		executor:     exec,
		engine:       engine,
		cache:        queryCache,
		tracker:      tracker,
		metrics:      m,
		defaultMode:  mode,
		queryTimeout: cfg.QueryTimeout,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Proximity handles GET /api/v1/proximity?q=A+/k+B&mode=bidirectional.
func (h *Handler) Proximity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	raw := r.URL.Query().Get("q")
	dir := h.defaultMode
	if mode := r.URL.Query().Get("mode"); mode != "" {
		parsed, err := proximity.ParseDirection(mode)
		if err != nil {
			h.writeAppError(w, err)
			return
		}
		dir = parsed
	}

	q, err := parser.Parse(raw)
	if err != nil {
		h.record(ctx, raw, dir, nil, false, time.Since(start), err)
		h.writeAppError(w, err)
		return
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	err = resilience.WithTimeout(ctx, h.queryTimeout, "proximity-query", func(ctx context.Context) error {
		compute := func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.ExecuteQuery(ctx, q, dir)
		}
		var (
			res *executor.SearchResult
			hit bool
			err error
		)
		if h.cache != nil {
			res, hit, err = h.cache.GetOrCompute(ctx, h.engine.Generation(), q, dir, compute)
		} else {
			res, err = compute(ctx)
		}
		if err != nil {
			return err
		}
		result, cacheHit = res, hit
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		// On timeout the query goroutine may still be running, so result
		// is not read here.
		h.record(ctx, q.String(), dir, nil, false, elapsed, err)
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("proximity query failed", "query", raw, "direction", dir.String(), "error", err)
		}
		h.writeAppError(w, err)
		return
	}
	h.record(ctx, q.String(), dir, result, cacheHit, elapsed, nil)

	log.Info("proximity query completed",
		"query", q.String(),
		"direction", dir.String(),
		"total_hits", result.TotalHits,
		"cache_hit", cacheHit,
		"latency_us", elapsed.Microseconds(),
	)
	if h.cache != nil {
		if cacheHit {
			w.Header().Set(CacheHeader, "HIT")
		} else {
			w.Header().Set(CacheHeader, "MISS")
		}
	}
	h.writeJSON(w, http.StatusOK, result)
}

// record updates query metrics and tracks an analytics event for one query,
// failed or not.
func (h *Handler) record(ctx context.Context, query string, dir proximity.Direction, result *executor.SearchResult, cacheHit bool, elapsed time.Duration, err error) {
	event := analytics.QueryEvent{
		Type:      analytics.EventQuery,
		Query:     query,
		Direction: dir.String(),
		LatencyUs: elapsed.Microseconds(),
		CacheHit:  cacheHit,
		ErrorKind: apperrors.Kind(err),
		RequestID: logger.RequestID(ctx),
		Timestamp: time.Now().UTC(),
	}
	outcome := event.ErrorKind
	if result != nil {
		event.K = result.K
		event.Generation = result.Generation
		event.TotalHits = result.TotalHits
		outcome = "hit"
		if result.TotalHits == 0 {
			outcome = "zero_result"
		}
	}

	if h.metrics != nil {
		h.metrics.ProximityQueries.WithLabelValues(event.Direction, outcome).Inc()
		if err == nil {
			cacheStatus := "disabled"
			switch {
			case h.cache != nil && cacheHit:
				cacheStatus = "hit"
			case h.cache != nil:
				cacheStatus = "miss"
			}
			h.metrics.ProximityLatency.WithLabelValues(event.Direction, cacheStatus).Observe(elapsed.Seconds())
			h.metrics.ProximityResults.WithLabelValues(event.Direction).Observe(float64(event.TotalHits))
		}
	}
	if h.tracker != nil {
		h.tracker.Track(event)
	}
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

type termResponse struct {
	Term              string            `json:"term"`
	Generation        uint64            `json:"generation"`
	DocumentFrequency int               `json:"document_frequency"`
	Occurrences       int               `json:"occurrences"`
	Postings          index.PostingList `json:"postings"`
}

// TermPostings handles GET /api/v1/index/terms/{term}.
func (h *Handler) TermPostings(w http.ResponseWriter, r *http.Request) {
	term := r.PathValue("term")
	snap := h.engine.Current()
	postings, err := snap.Search(term)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, termResponse{
		Term:              term,
		Generation:        snap.Generation,
		DocumentFrequency: len(postings),
		Occurrences:       postings.Occurrences(),
		Postings:          postings,
	})
}

// Reload handles POST /api/v1/index/reload. A failed reload leaves the
// previous index serving and is reported with its error status.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	start := time.Now()
	stats, err := h.engine.Reload(r.Context())
	if err != nil {
		log.Error("index reload failed", "error", err)
		if h.tracker != nil {
			h.tracker.Track(analytics.ReloadEvent{
				Type:       analytics.EventReload,
				Generation: h.engine.Generation(),
				DurationMs: time.Since(start).Milliseconds(),
				Error:      err.Error(),
				Timestamp:  time.Now().UTC(),
			})
		}
		h.writeAppError(w, err)
		return
	}
	log.Info("index reloaded on request", "generation", stats.Generation)
	h.writeJSON(w, http.StatusOK, stats)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeAppError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
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

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeAppError maps err to its HTTP status. Internal errors are not echoed
// to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.writeJSON(w, status, errorResponse{Error: msg, Kind: apperrors.Kind(err)})
}
