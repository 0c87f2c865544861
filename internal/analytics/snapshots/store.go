// Package snapshots persists periodic copies of the analytics aggregate to
// PostgreSQL so totals survive a restart of the analytics service.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store reads and writes rows of the analytics_snapshots table.
type Store struct {
	db        *postgres.Client
	retention int
	logger    *slog.Logger
}

type snapshotRow struct {
	ID         int64     `db:"id"`
	Data       []byte    `db:"data"`
	CapturedAt time.Time `db:"captured_at"`
}

// NewStore returns a Store that keeps at most retention snapshots; zero or
// less keeps them all.
func NewStore(db *postgres.Client, retention int) *Store {
	return &Store{
		db:        db,
		retention: retention,
		logger:    slog.Default().With("component", "analytics-snapshots"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// Save inserts stats as a new snapshot and prunes beyond the retention limit
// in the same transaction.
func (s *Store) Save(ctx context.Context, stats analytics.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if s.retention <= 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM analytics_snapshots
			 WHERE id NOT IN (SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1)`,
			s.retention,
		)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_queries", stats.TotalQueries,
		"reloads", stats.Reloads,
		"pruned", pruned,
	)
	return nil
}

// Latest returns the most recent snapshot, or nil if none has been saved.
func (s *Store) Latest(ctx context.Context) (*analytics.Snapshot, error) {
	var row snapshotRow
	err := s.db.DB.GetContext(ctx, &row,
		`SELECT id, data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	snap, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns up to limit snapshots, newest first. Rows whose payload no
// longer decodes are skipped.
func (s *Store) List(ctx context.Context, limit int) ([]analytics.Snapshot, error) {
	var rows []snapshotRow
	if err := s.db.DB.SelectContext(ctx, &rows,
		`SELECT id, data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	out := make([]analytics.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := row.decode()
		if err != nil {
			s.logger.Warn("skipping corrupt snapshot", "id", row.ID, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r snapshotRow) decode() (analytics.Snapshot, error) {
	var stats analytics.Stats
	if err := json.Unmarshal(r.Data, &stats); err != nil {
		return analytics.Snapshot{}, fmt.Errorf("unmarshaling snapshot %d: %w", r.ID, err)
	}
	return analytics.Snapshot{ID: r.ID, CapturedAt: r.CapturedAt, Stats: stats}, nil
}

// Run saves agg's stats every interval until ctx is cancelled, then saves a
// final snapshot.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) error {
	s.logger.Info("periodic snapshot started", "interval", interval, "retention", s.retention)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			return nil
		}
	}
}
