package indexer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
)

func testCorpusConfig() config.CorpusConfig {
	return config.CorpusConfig{
		DocPrefix:     "Doc",
		ReloadTimeout: 5 * time.Second,
		WatchDebounce: 50 * time.Millisecond,
	}
}

func writeCorpus(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEngineSearch(t *testing.T) {
	src := corpus.NewStaticSource(
		"Doc1 breakthrough drug for schizophrenia",
		"Doc4 new schizophrenia drug",
		"header without id",
	)
	eng, err := NewEngine(context.Background(), src, testCorpusConfig(), metrics.NewWithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	got, err := eng.Search("drug")
	if err != nil {
		t.Fatalf("Search(drug) error = %v", err)
	}
	want := index.PostingList{
		{DocID: 1, Positions: []int{1}},
		{DocID: 4, Positions: []int{2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search(drug) mismatch (-want +got):\n%s", diff)
	}

	_, err = eng.Search("aspirin")
	if !errors.Is(err, apperrors.ErrUnknownTerm) {
		t.Fatalf("Search(aspirin) error = %v, want ErrUnknownTerm", err)
	}
	if apperrors.HTTPStatusCode(err) != http.StatusNotFound {
		t.Errorf("HTTPStatusCode = %d, want 404", apperrors.HTTPStatusCode(err))
	}

	stats := eng.Stats()
	if stats.Generation != 1 || stats.Documents != 2 || stats.SkippedLines != 1 || stats.Lines != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestNewEngineEmptyCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Docs.txt")
	writeCorpus(t, path, "\n\n")
	_, err := NewEngine(context.Background(), corpus.NewFileSource(path), testCorpusConfig(), nil)
	if !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("NewEngine() error = %v, want ErrEmptyCorpus", err)
	}
}

func TestEngineReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Docs.txt")
	writeCorpus(t, path, "Doc1 alpha beta\n")
	eng, err := NewEngine(context.Background(), corpus.NewFileSource(path), testCorpusConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	before := eng.Current()

	var hooked []uint64
	eng.OnReload(func(s Stats) { hooked = append(hooked, s.Generation) })

	writeCorpus(t, path, "Doc1 alpha beta\nDoc2 gamma\n")
	stats, err := eng.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if stats.Generation != 2 || stats.Documents != 2 {
		t.Errorf("Reload() stats = %+v", stats)
	}
	if _, err := eng.Search("gamma"); err != nil {
		t.Errorf("Search(gamma) after reload error = %v", err)
	}
	if _, err := before.Search("gamma"); !errors.Is(err, apperrors.ErrUnknownTerm) {
		t.Errorf("old snapshot sees new term: %v", err)
	}
	if diff := cmp.Diff([]uint64{2}, hooked); diff != "" {
		t.Errorf("OnReload generations mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineReloadFailureKeepsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Docs.txt")
	writeCorpus(t, path, "Doc1 alpha\n")
	eng, err := NewEngine(context.Background(), corpus.NewFileSource(path), testCorpusConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Reload(context.Background()); err == nil {
		t.Fatal("Reload() of a missing file succeeded")
	}
	if eng.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", eng.Generation())
	}
	if _, err := eng.Search("alpha"); err != nil {
		t.Errorf("Search(alpha) after failed reload error = %v", err)
	}
}

func TestEngineConcurrentReadsDuringReload(t *testing.T) {
	eng, err := NewEngine(context.Background(), corpus.NewStaticSource("Doc1 alpha beta", "Doc2 beta alpha"), testCorpusConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := eng.Search("alpha"); err != nil {
					t.Errorf("Search(alpha) error = %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if _, err := eng.Reload(context.Background()); err != nil {
			t.Errorf("Reload() error = %v", err)
		}
	}
	wg.Wait()
	if eng.Generation() != 6 {
		t.Errorf("Generation() = %d, want 6", eng.Generation())
	}
}

func TestEngineWatchCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Docs.txt")
	writeCorpus(t, path, "Doc1 alpha\n")
	eng, err := NewEngine(context.Background(), corpus.NewFileSource(path), testCorpusConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	reloaded := make(chan Stats, 1)
	eng.OnReload(func(s Stats) {
		select {
		case reloaded <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.WatchCorpus(ctx, path)
	time.Sleep(100 * time.Millisecond)

	writeCorpus(t, path, "Doc1 alpha\nDoc2 omega\n")
	select {
	case s := <-reloaded:
		if s.Documents != 2 {
			t.Errorf("reloaded stats = %+v, want 2 documents", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine was not reloaded after the corpus file changed")
	}
}
