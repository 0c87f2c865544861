package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/resilience"
)

// Snapshot is one published build of the positional index. It is immutable.
type Snapshot struct {
	Index         *index.PositionalIndex
	Generation    uint64
	Source        string
	BuiltAt       time.Time
	BuildDuration time.Duration
}

// Search returns the postings of term, or ErrUnknownTerm when the term does
// not occur in the corpus.
func (s *Snapshot) Search(term string) (index.PostingList, error) {
	postings, ok := s.Index.Lookup(term)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownTerm, http.StatusNotFound, "term %q is not indexed", term)
	}
	return postings, nil
}

// Stats summarises a Snapshot for logs and the stats endpoint.
type Stats struct {
	Generation     uint64    `json:"generation"`
	Source         string    `json:"source"`
	Terms          int       `json:"terms"`
	Documents      int       `json:"documents"`
	Lines          int       `json:"lines"`
	SkippedLines   int       `json:"skipped_lines"`
	DuplicateLines int       `json:"duplicate_lines"`
	Positions      int       `json:"positions"`
	BuiltAt        time.Time `json:"built_at"`
	BuildDuration  string    `json:"build_duration"`
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		Generation:     s.Generation,
		Source:         s.Source,
		Terms:          s.Index.TermCount(),
		Documents:      s.Index.DocCount(),
		Lines:          s.Index.LineCount(),
		SkippedLines:   s.Index.Skipped(),
		DuplicateLines: s.Index.Duplicates(),
		Positions:      s.Index.PositionCount(),
		BuiltAt:        s.BuiltAt,
		BuildDuration:  s.BuildDuration.String(),
	}
}

// Engine owns the corpus source and the currently published index. Queries
// read the current Snapshot without locking; Reload builds a replacement off
// to the side and swaps it in atomically, so in-flight queries finish against
// the snapshot they started with.
type Engine struct {
	source   corpus.Source
	cfg      config.CorpusConfig
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	onReload []func(Stats)
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine loads src and builds the first index. It fails if that first
// build fails, since an engine without an index cannot answer queries.
func NewEngine(ctx context.Context, src corpus.Source, cfg config.CorpusConfig, m *metrics.Metrics) (*Engine, error) {
	e := &Engine{
		source:  src,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer", "source", src.Describe()),
	}
	if _, err := e.Reload(ctx); err != nil {
		return nil, fmt.Errorf("building initial index: %w", err)
	}
	return e, nil
}

// Reload re-reads the corpus and publishes a new index. On failure the
// previous index stays published. Concurrent calls are serialised.
func (e *Engine) Reload(ctx context.Context) (Stats, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	var built *index.PositionalIndex
	err := resilience.WithTimeout(ctx, e.cfg.ReloadTimeout, "index-reload", func(ctx context.Context) error {
		lines, err := e.source.Lines(ctx)
		if err != nil {
			return fmt.Errorf("loading corpus from %s: %w", e.source.Describe(), err)
		}
		idx, err := index.Build(lines)
		if err != nil {
			return err
		}
		built = idx
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		e.recordReload("failure", elapsed)
		e.logger.Error("index build failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return Stats{}, err
	}

	var generation uint64 = 1
	if prev := e.current.Load(); prev != nil {
		generation = prev.Generation + 1
	}
	snap := &Snapshot{
		Index:         built,
		Generation:    generation,
		Source:        e.source.Describe(),
		BuiltAt:       time.Now().UTC(),
		BuildDuration: elapsed,
	}
	e.current.Store(snap)
	stats := snap.Stats()

	e.recordReload("success", elapsed)
	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(stats.Terms))
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexSkippedLines.Set(float64(stats.SkippedLines))
		e.metrics.IndexGeneration.Set(float64(stats.Generation))
	}
	e.logger.Info("positional index published",
		"generation", stats.Generation,
		"terms", stats.Terms,
		"docs", stats.Documents,
		"lines", stats.Lines,
		"skipped_lines", stats.SkippedLines,
		"duplicate_lines", stats.DuplicateLines,
		"duration_ms", elapsed.Milliseconds(),
	)
	if stats.SkippedLines > 0 {
		e.logger.Warn("corpus lines without a document identifier were skipped", "count", stats.SkippedLines)
	}

	e.hooksMu.RLock()
	hooks := e.onReload
	e.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(stats)
	}
	return stats, nil
}

func (e *Engine) recordReload(status string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
}

// OnReload registers fn to run after every successful Reload, on the
// reloading goroutine.
func (e *Engine) OnReload(fn func(Stats)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.onReload = append(e.onReload, fn)
}

// Current returns the published Snapshot. Callers that perform several
// lookups for one query should hold on to a single Snapshot.
func (e *Engine) Current() *Snapshot {
	return e.current.Load()
}

// Search looks term up in the current Snapshot.
func (e *Engine) Search(term string) (index.PostingList, error) {
	return e.Current().Search(term)
}

func (e *Engine) Generation() uint64 {
	return e.Current().Generation
}

func (e *Engine) Stats() Stats {
	return e.Current().Stats()
}

// WatchCorpus reloads the engine whenever the corpus file at path changes.
// It blocks until ctx is cancelled.
func (e *Engine) WatchCorpus(ctx context.Context, path string) error {
	w := corpus.NewWatcher(path, e.cfg.WatchDebounce, func(ctx context.Context) error {
		_, err := e.Reload(ctx)
		return err
	})
	return w.Run(ctx)
}
