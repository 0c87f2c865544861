// Command analytics runs the standalone analytics service.
//
// It consumes proximity query and index reload events from Kafka, aggregates
// them in memory (query totals per mode, error kinds, latency percentiles,
// cache hit rate, top and zero-result queries, reloads), optionally persists
// periodic snapshots to PostgreSQL, and serves:
//
//	GET /api/v1/analytics          current aggregate
//	GET /api/v1/analytics/history  persisted snapshots, newest first
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics/snapshots"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/postgres"
)

// maxConsumerLag is the backlog past which readiness reports degraded.
const maxConsumerLag = 10000

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service",
		"port", cfg.Analytics.Port,
		"topic", cfg.Kafka.Topics.QueryEvents,
		"persist_snapshots", cfg.Analytics.PersistSnapshots,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	aggregator := analytics.NewAggregator()
	checker := health.NewChecker()
	g, gctx := errgroup.WithContext(ctx)

	var history analytics.SnapshotLister
	if cfg.Analytics.PersistSnapshots {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting snapshot database: %w", err)
		}
		defer db.Close()
		store := snapshots.NewStore(db, cfg.Analytics.SnapshotRetention)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if last, err := store.Latest(ctx); err != nil {
			slog.Warn("reading latest analytics snapshot failed", "error", err)
		} else if last != nil {
			slog.Info("previous analytics snapshot found",
				"captured_at", last.CapturedAt,
				"total_queries", last.Stats.TotalQueries,
				"index_generation", last.Stats.IndexGeneration,
			)
		}
		history = store
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		g.Go(func() error { return store.Run(gctx, aggregator, cfg.Analytics.SnapshotInterval) })
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, analytics.HandleEvent(aggregator))
	g.Go(func() error {
		slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.QueryEvents, "group", cfg.Kafka.ConsumerGroup)
		return consumer.Start(gctx)
	})
	checker.Register("kafka-consumer", func(ctx context.Context) health.ComponentHealth {
		lag := consumer.Lag()
		handled, failed := consumer.Counts()
		msg := fmt.Sprintf("lag=%d handled=%d failed=%d", lag, handled, failed)
		if lag > maxConsumerLag {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})

	h := analytics.NewHandler(aggregator, history)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
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

	return g.Wait()
}
