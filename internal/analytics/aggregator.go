package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// topQueries is the length of the top and zero-result query lists.
const topQueries = 10

// Stats is a point-in-time view of the aggregated events.
type Stats struct {
	TotalQueries      int64            `json:"total_queries"`
	FailedQueries     int64            `json:"failed_queries"`
	QueriesByMode     map[string]int64 `json:"queries_by_mode"`
	ErrorsByKind      map[string]int64 `json:"errors_by_kind"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyUs      float64          `json:"avg_latency_us"`
	P50LatencyUs      int64            `json:"p50_latency_us"`
	P95LatencyUs      int64            `json:"p95_latency_us"`
	P99LatencyUs      int64            `json:"p99_latency_us"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	Reloads           int64            `json:"reloads"`
	FailedReloads     int64            `json:"failed_reloads"`
	IndexGeneration   uint64           `json:"index_generation"`
	Since             time.Time        `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It is safe for concurrent use
// and implements Tracker, so the searcher can aggregate in process as well.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      int64
	failedQueries     int64
	byMode            map[string]int64
	errorsByKind      map[string]int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	reloads           int64
	failedReloads     int64
	generation        uint64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byMode:            make(map[string]int64),
		errorsByKind:      make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now().UTC(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts agg to a Kafka message handler.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := Decode(value)
		if err != nil {
			return fmt.Errorf("analytics message %q: %w", key, err)
		}
		agg.Track(event)
		return nil
	}
}

func (a *Aggregator) Track(event Event) {
	switch e := event.(type) {
	case QueryEvent:
		a.recordQuery(e)
	case *QueryEvent:
		a.recordQuery(*e)
	case ReloadEvent:
		a.recordReload(e)
	case *ReloadEvent:
		a.recordReload(*e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", event.EventType())
	}
}

func (a *Aggregator) recordQuery(e QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalQueries++
	a.byMode[e.Direction]++
	if e.ErrorKind != "" {
		a.failedQueries++
		a.errorsByKind[e.ErrorKind]++
		return
	}
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyUs)
	} else {
		a.latencies[a.nextLatency] = e.LatencyUs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
	a.queryCounts[e.Query]++
	if e.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[e.Query]++
	}
	if e.Generation > a.generation {
		a.generation = e.Generation
	}
}

func (a *Aggregator) recordReload(e ReloadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Error != "" {
		a.failedReloads++
		return
	}
	a.reloads++
	if e.Generation > a.generation {
		a.generation = e.Generation
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalQueries:      a.totalQueries,
		FailedQueries:     a.failedQueries,
		QueriesByMode:     copyCounts(a.byMode),
		ErrorsByKind:      copyCounts(a.errorsByKind),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queryCounts, topQueries),
		ZeroResultQueries: topN(a.zeroResultQueries, topQueries),
		Reloads:           a.reloads,
		FailedReloads:     a.failedReloads,
		IndexGeneration:   a.generation,
		Since:             a.startTime,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken by query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
