package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeLister struct {
	snaps     []Snapshot
	err       error
	lastLimit int
}

func (f *fakeLister) List(ctx context.Context, limit int) ([]Snapshot, error) {
	f.lastLimit = limit
	return f.snaps, f.err
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(QueryEvent{Query: "x /1 y", Direction: "unidirectional", TotalHits: 0})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got Stats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.TotalQueries != 1 || got.ZeroResultCount != 1 {
		t.Errorf("Stats = %+v", got)
	}
}

func TestHandlerHistory(t *testing.T) {
	lister := &fakeLister{snaps: []Snapshot{{ID: 2}, {ID: 1}}}
	tests := []struct {
		name      string
		history   SnapshotLister
		url       string
		wantCode  int
		wantLimit int
	}{
		{"disabled", nil, "/api/v1/analytics/history", http.StatusNotFound, 0},
		{"default limit", lister, "/api/v1/analytics/history", http.StatusOK, defaultHistoryLimit},
		{"explicit limit", lister, "/api/v1/analytics/history?limit=5", http.StatusOK, 5},
		{"capped limit", lister, "/api/v1/analytics/history?limit=999999", http.StatusOK, maxHistoryLimit},
		{"bad limit", lister, "/api/v1/analytics/history?limit=-1", http.StatusBadRequest, 0},
		{"store error", &fakeLister{err: errors.New("db down")}, "/api/v1/analytics/history", http.StatusInternalServerError, defaultHistoryLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f, ok := tt.history.(*fakeLister); ok {
				f.lastLimit = 0
			}
			h := NewHandler(NewAggregator(), tt.history)
			rec := httptest.NewRecorder()
			h.History(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if f, ok := tt.history.(*fakeLister); ok && f.lastLimit != tt.wantLimit {
				t.Errorf("List limit = %d, want %d", f.lastLimit, tt.wantLimit)
			}
		})
	}
}
