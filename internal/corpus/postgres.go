package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/resilience"
)

// PostgresSource reads corpus lines from a table shaped like:
//
//	CREATE TABLE corpus_lines (
//	    position BIGSERIAL PRIMARY KEY,
//	    line     TEXT NOT NULL
//	);
//
// Lines are returned in position order.
type PostgresSource struct {
	db     *postgres.Client
	table  string
	query  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

type lineRow struct {
	Position int64  `db:"position"`
	Line     string `db:"line"`
}

func NewPostgresSource(db *postgres.Client, table string) *PostgresSource {
	return &PostgresSource{
		db:    db,
		table: table,
		query: fmt.Sprintf(`SELECT position, line FROM %s ORDER BY position`, pq.QuoteIdentifier(table)),
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			Retryable:    isTransient,
		},
		logger: slog.Default().With("component", "corpus-postgres", "table", table),
	}
}

func (s *PostgresSource) Lines(ctx context.Context) ([]string, error) {
	var rows []lineRow
	err := resilience.Retry(ctx, "corpus-select", s.retry, func() error {
		rows = rows[:0]
		return s.db.DB.SelectContext(ctx, &rows, s.query)
	})
	if err != nil {
		return nil, fmt.Errorf("selecting corpus lines from %s: %w", s.table, err)
	}
	var lines []string
	for _, row := range rows {
		lines = appendTrimmed(lines, row.Line)
	}
	s.logger.Debug("corpus rows loaded", "rows", len(rows), "lines", len(lines))
	if len(lines) == 0 {
		return nil, fmt.Errorf("table %s: %w", s.table, apperrors.ErrEmptyCorpus)
	}
	return lines, nil
}

func (s *PostgresSource) Describe() string { return "postgres:" + s.table }

// isTransient treats schema errors and cancellation as permanent.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 42: syntax error or access rule violation (missing table, bad column).
		return pqErr.Code.Class() != "42"
	}
	return true
}
