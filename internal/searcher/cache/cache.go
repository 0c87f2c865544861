// Package cache stores proximity query results in Redis. Keys embed the index
// generation, so a reload makes every earlier entry unreachable; a circuit
// breaker keeps a failing Redis from slowing queries down.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/resilience"
)

const (
	keyPrefix   = "proximity:"
	breakerName = "redis-cache"
	// computeTimeout bounds a shared computation once no single caller's
	// deadline applies to it.
	computeTimeout = 30 * time.Second
)

// Store is the subset of the Redis client the cache needs. A missing key is
// reported with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	breakerCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(resilience.StateClosed))
		breakerCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		store:   store,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(breakerName, breakerCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key of q run in dir against index generation.
func Key(generation uint64, dir proximity.Direction, q *parser.Query) string {
	hash := sha256.Sum256([]byte(q.String()))
	return fmt.Sprintf("%sg%d:%s:%x", keyPrefix, generation, dir, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for q or runs computeFn, sharing a
// single computation among concurrent callers with the same key. The shared
// computation runs on a context detached from any one caller and bounded by
// computeTimeout, so a caller that goes away only abandons its own wait.
// Errors are never cached. The bool reports a cache hit. The returned
// result always echoes the caller's own raw query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	q *parser.Query,
	dir proximity.Direction,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := Key(generation, dir, q)
	if result, ok := c.Get(ctx, key); ok {
		return withRawQuery(result, q), true, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		result, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, Key(result.Generation, dir, q), result)
		return result, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return withRawQuery(res.Val.(*executor.SearchResult), q), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// withRawQuery returns a shallow copy of result carrying q's raw text. The
// original may be shared with other callers.
func withRawQuery(result *executor.SearchResult, q *parser.Query) *executor.SearchResult {
	out := *result
	out.Query = q.RawQuery
	return &out
}

// Invalidate deletes every cached proximity result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits    int64            `json:"hits"`
	Misses  int64            `json:"misses"`
	Total   int64            `json:"total"`
	HitRate string           `json:"hit_rate"`
	Breaker resilience.Stats `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Total:   total,
		HitRate: fmt.Sprintf("%.1f%%", hitRate),
		Breaker: c.breaker.Stats(),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
