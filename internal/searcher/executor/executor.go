// Package executor answers proximity queries against the engine's current
// index: parse, look both terms up, intersect, format.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/tracing"
)

type SearchResult struct {
	Query      string             `json:"query"`
	TermA      string             `json:"term_a"`
	TermB      string             `json:"term_b"`
	K          int                `json:"k"`
	Direction  string             `json:"direction"`
	Generation uint64             `json:"generation"`
	TotalHits  int                `json:"total_hits"`
	Results    []formatter.Result `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
}

type Executor struct {
	engine  *indexer.Engine
	prefix  string
	tracing bool
	logger  *slog.Logger
}

// New returns an Executor labelling documents with prefix (formatter's
// DefaultPrefix when empty).
func New(engine *indexer.Engine, prefix string) *Executor {
	if prefix == "" {
		prefix = formatter.DefaultPrefix
	}
	return &Executor{
		engine: engine,
		prefix: prefix,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// EnableTracing makes every query record a span tree and log it at debug
// level.
func (e *Executor) EnableTracing(enabled bool) {
	e.tracing = enabled
}

// Bidirectional answers raw with |posB - posA| <= k.
func (e *Executor) Bidirectional(ctx context.Context, raw string) (*SearchResult, error) {
	return e.Execute(ctx, raw, proximity.Bidirectional)
}

// Unidirectional answers raw with 0 <= posB - posA <= k.
func (e *Executor) Unidirectional(ctx context.Context, raw string) (*SearchResult, error) {
	return e.Execute(ctx, raw, proximity.Unidirectional)
}

// Execute parses raw as "A /k B" and runs it in direction dir. It fails with
// ErrMalformedQuery for a bad query string and ErrUnknownTerm when either
// term is absent from the index.
func (e *Executor) Execute(ctx context.Context, raw string, dir proximity.Direction) (*SearchResult, error) {
	ctx, finish := e.trace(ctx)
	defer finish()
	_, span := tracing.StartChildSpan(ctx, "parse")
	q, err := parser.Parse(raw)
	span.End()
	if err != nil {
		return nil, err
	}
	return e.ExecuteQuery(ctx, q, dir)
}

// trace opens a root span when tracing is on and ctx has none yet. finish
// ends and logs it.
func (e *Executor) trace(ctx context.Context) (context.Context, func()) {
	if !e.tracing || tracing.SpanFromContext(ctx) != nil {
		return ctx, func() {}
	}
	ctx, root := tracing.StartSpan(ctx, "proximity-query")
	return ctx, func() {
		root.End()
		root.Log(e.logger)
	}
}

// ExecuteQuery runs an already parsed query. Both terms are looked up in the
// same index snapshot.
func (e *Executor) ExecuteQuery(ctx context.Context, q *parser.Query, dir proximity.Direction) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, finish := e.trace(ctx)
	defer finish()
	start := time.Now()
	snap := e.engine.Current()

	_, span := tracing.StartChildSpan(ctx, "lookup")
	p1, err := snap.Search(q.TermA)
	if err != nil {
		span.End()
		return nil, fmt.Errorf("looking up %q: %w", q.TermA, err)
	}
	p2, err := snap.Search(q.TermB)
	span.SetAttr("docs_a", len(p1))
	span.SetAttr("docs_b", len(p2))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", q.TermB, err)
	}

	_, span = tracing.StartChildSpan(ctx, "intersect")
	occurrences := proximity.Intersect(p1, p2, q.K, dir)
	span.SetAttr("occurrences", len(occurrences))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "format")
	results := formatter.Format(occurrences, e.prefix)
	span.End()

	e.logger.Info("query executed",
		"query", q.String(),
		"direction", dir.String(),
		"generation", snap.Generation,
		"results", len(results),
		"duration_us", time.Since(start).Microseconds(),
	)
	return &SearchResult{
		Query:      q.RawQuery,
		TermA:      q.TermA,
		TermB:      q.TermB,
		K:          q.K,
		Direction:  dir.String(),
		Generation: snap.Generation,
		TotalHits:  len(results),
		Results:    results,
		TermStats: map[string]int{
			q.TermA: len(p1),
			q.TermB: len(p2),
		},
	}, nil
}
