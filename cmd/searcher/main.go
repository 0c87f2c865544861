// Command searcher serves proximity queries ("term1 /k term2") over HTTP from
// an in-memory positional index.
//
// The index is built from a corpus file or a PostgreSQL table at startup and
// rebuilt on POST /api/v1/index/reload or, for file corpora with watching
// enabled, whenever the file changes. Results are optionally cached in Redis
// and query events optionally published to Kafka.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"default_mode", cfg.Search.DefaultMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	g, gctx := errgroup.WithContext(ctx)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Port) })
	}

	checker := health.NewChecker()

	src, closeSource, err := openSource(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := indexer.NewEngine(ctx, src, cfg.Corpus, m)
	if err != nil {
		return err
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		if stats.Documents == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index holds no documents"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d terms, %d documents", stats.Generation, stats.Terms, stats.Documents),
		}
	})

	exec := executor.New(engine, cfg.Corpus.DocPrefix)
	exec.EnableTracing(cfg.Tracing.Enabled)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, proximity caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			// Keys carry the generation, so entries of older generations are
			// already unreachable; flushing them just frees memory.
			engine.OnReload(func(stats indexer.Stats) {
				go func() {
					flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if _, err := queryCache.Invalidate(flushCtx); err != nil {
						slog.Warn("flushing stale cache entries failed", "generation", stats.Generation, "error", err)
					}
				}()
			})
			slog.Info("proximity cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	trackers := analytics.Trackers{aggregator}
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics, m)
		trackers = append(trackers, collector)
		g.Go(func() error { return collector.Run(gctx) })
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.QueryEvents)
	}
	engine.OnReload(func(stats indexer.Stats) {
		trackers.Track(analytics.ReloadEvent{
			Type:         analytics.EventReload,
			Generation:   stats.Generation,
			Source:       stats.Source,
			Terms:        stats.Terms,
			Documents:    stats.Documents,
			SkippedLines: stats.SkippedLines,
			Timestamp:    stats.BuiltAt,
		})
	})

	search := handler.New(exec, engine, queryCache, trackers, m, cfg.Search)
	var limiter *ratelimit.Limiter
	if rl := cfg.Server.RateLimit; rl.Requests > 0 {
		limiter = ratelimit.New(rl.Requests, rl.Window)
		g.Go(func() error {
			limiter.Run(gctx, 5*time.Minute)
			return nil
		})
		slog.Info("rate limiting enabled", "requests", rl.Requests, "window", rl.Window)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(router.Deps{
			Search:    search,
			Analytics: analytics.NewHandler(aggregator, nil),
			Health:    checker,
			Metrics:   m,
			Limiter:   limiter,
		}, cfg.Server, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Corpus.Watch {
		if cfg.Corpus.Source != config.SourceFile {
			slog.Warn("corpus.watch is only supported for file corpora", "source", cfg.Corpus.Source)
		} else {
			g.Go(func() error { return watchCorpus(gctx, engine.WatchCorpus, cfg.Corpus.Path) })
		}
	}

	return g.Wait()
}

// openSource returns the configured corpus source and a func releasing
// whatever it holds open.
func openSource(ctx context.Context, cfg *config.Config, checker *health.Checker) (corpus.Source, func(), error) {
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting corpus database: %w", err)
		}
		// The index is already in memory, so a lost database only blocks
		// reloads.
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		return corpus.NewPostgresSource(db, cfg.Corpus.Table), func() { db.Close() }, nil
	default:
		return corpus.NewFileSource(cfg.Corpus.Path), func() {}, nil
	}
}

// watchCorpus runs watch until ctx ends. A watcher failure is logged and
// swallowed so the errgroup keeps serving the last good index.
func watchCorpus(ctx context.Context, watch func(context.Context, string) error, path string) error {
	if err := watch(ctx, path); err != nil && ctx.Err() == nil {
		slog.Error("corpus watcher stopped; reload manually via POST /api/v1/index/reload",
			"path", path, "error", err)
	}
	return nil
}
