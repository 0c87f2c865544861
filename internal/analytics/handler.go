package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Snapshot is a persisted copy of Stats.
type Snapshot struct {
	ID         int64     `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Stats      Stats     `json:"stats"`
}

// SnapshotLister lists persisted snapshots, newest first.
type SnapshotLister interface {
	List(ctx context.Context, limit int) ([]Snapshot, error)
}

const (
	defaultHistoryLimit = 60
	maxHistoryLimit     = 1000
)

type Handler struct {
	aggregator *Aggregator
	history    SnapshotLister
	logger     *slog.Logger
}

// NewHandler serves aggregator's stats. history may be nil when snapshots are
// not persisted.
func NewHandler(aggregator *Aggregator, history SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// History handles GET ?limit=N over persisted snapshots.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot persistence is disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	snaps, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing analytics snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list snapshots"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
