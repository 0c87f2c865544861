package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

func newTestExecutor(t *testing.T, lines ...string) *Executor {
	t.Helper()
	eng, err := indexer.NewEngine(context.Background(), corpus.NewStaticSource(lines...), config.CorpusConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return New(eng, "")
}

var schizophreniaCorpus = []string{
	"Doc1 breakthrough drug for schizophrenia",
	"Doc2 new approach for treatment of schizophrenia",
	"Doc3 new hopes for schizophrenia patients",
	"Doc4 new schizophrenia drug",
}

func TestExecuteGolden(t *testing.T) {
	ex := newTestExecutor(t, schizophreniaCorpus...)
	tests := []struct {
		query string
		dir   proximity.Direction
		want  []formatter.Result
	}{
		{"schizophrenia /2 drug", proximity.Bidirectional, []formatter.Result{
			{DocID: "Doc1", PosA: 3, PosB: 1},
			{DocID: "Doc4", PosA: 1, PosB: 2},
		}},
		{"drug /2 schizophrenia", proximity.Bidirectional, []formatter.Result{
			{DocID: "Doc1", PosA: 1, PosB: 3},
			{DocID: "Doc4", PosA: 2, PosB: 1},
		}},
		{"drug /1 schizophrenia", proximity.Unidirectional, nil},
		{"drug /2 schizophrenia", proximity.Unidirectional, []formatter.Result{
			{DocID: "Doc1", PosA: 1, PosB: 3},
		}},
		{"schizophrenia /1 drug", proximity.Unidirectional, []formatter.Result{
			{DocID: "Doc4", PosA: 1, PosB: 2},
		}},
		{"for /1 schizophrenia", proximity.Bidirectional, []formatter.Result{
			{DocID: "Doc1", PosA: 2, PosB: 3},
			{DocID: "Doc3", PosA: 2, PosB: 3},
		}},
		{"new /0 drug", proximity.Bidirectional, nil},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String()+"/"+tt.query, func(t *testing.T) {
			got, err := ex.Execute(context.Background(), tt.query, tt.dir)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got.Results, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Execute() results mismatch (-want +got):\n%s", diff)
			}
			if got.TotalHits != len(tt.want) {
				t.Errorf("TotalHits = %d, want %d", got.TotalHits, len(tt.want))
			}
			if got.Direction != tt.dir.String() {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.dir.String())
			}
		})
	}
}

func TestExecuteAliases(t *testing.T) {
	ex := newTestExecutor(t, schizophreniaCorpus...)
	ctx := context.Background()
	bi, err := ex.Bidirectional(ctx, "schizophrenia /1 drug")
	if err != nil {
		t.Fatalf("Bidirectional() error = %v", err)
	}
	uni, err := ex.Unidirectional(ctx, "schizophrenia /1 drug")
	if err != nil {
		t.Fatalf("Unidirectional() error = %v", err)
	}
	if diff := cmp.Diff(bi.Results, uni.Results); diff != "" {
		t.Errorf("schizophrenia /1 drug differs by direction (-bi +uni):\n%s", diff)
	}
	if bi.TermStats["schizophrenia"] != 4 || bi.TermStats["drug"] != 2 {
		t.Errorf("TermStats = %v", bi.TermStats)
	}
}

func TestExecuteLexicographicDisplayOrder(t *testing.T) {
	ex := newTestExecutor(t,
		"Doc2 red fox",
		"Doc10 red fox",
		"Doc1 red fox",
	)
	got, err := ex.Bidirectional(context.Background(), "red /1 fox")
	if err != nil {
		t.Fatalf("Bidirectional() error = %v", err)
	}
	want := []formatter.Result{
		{DocID: "Doc1", PosA: 0, PosB: 1},
		{DocID: "Doc10", PosA: 0, PosB: 1},
		{DocID: "Doc2", PosA: 0, PosB: 1},
	}
	if diff := cmp.Diff(want, got.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteErrors(t *testing.T) {
	ex := newTestExecutor(t, schizophreniaCorpus...)
	tests := []struct {
		query string
		want  error
	}{
		{"schizophrenia /2 aspirin", apperrors.ErrUnknownTerm},
		{"aspirin /2 drug", apperrors.ErrUnknownTerm},
		{"Schizophrenia /2 drug", apperrors.ErrUnknownTerm},
		{"schizophrenia drug", apperrors.ErrMalformedQuery},
		{"schizophrenia /x drug", apperrors.ErrMalformedQuery},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := ex.Bidirectional(context.Background(), tt.query)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Bidirectional(%q) error = %v, want %v", tt.query, err, tt.want)
			}
			if res != nil {
				t.Errorf("Bidirectional(%q) returned a partial result", tt.query)
			}
		})
	}
}

func TestExecuteAllLinesSkipped(t *testing.T) {
	ex := newTestExecutor(t, "no identifier here")
	_, err := ex.Bidirectional(context.Background(), "no /1 identifier")
	if !errors.Is(err, apperrors.ErrUnknownTerm) {
		t.Errorf("error = %v, want ErrUnknownTerm", err)
	}
}

func TestExecuteWithTracing(t *testing.T) {
	ex := newTestExecutor(t, schizophreniaCorpus...)
	ex.EnableTracing(true)
	if _, err := ex.Unidirectional(context.Background(), "drug /2 schizophrenia"); err != nil {
		t.Fatalf("Unidirectional() error = %v", err)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	ex := newTestExecutor(t, schizophreniaCorpus...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ex.Bidirectional(ctx, "schizophrenia /2 drug"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// BenchmarkExecuteParallel measures concurrent queries against one snapshot
// of a synthetic corpus, in both modes.
func BenchmarkExecuteParallel(b *testing.B) {
	words := []string{"search", "engine", "proximity", "index", "query", "posting", "term", "window"}
	lines := make([]string, 5000)
	for d := range lines {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Doc%d", d+1)
		for w := 0; w < 40; w++ {
			sb.WriteByte(' ')
			sb.WriteString(words[(d*7+w*3)%len(words)])
		}
		lines[d] = sb.String()
	}
	eng, err := indexer.NewEngine(context.Background(), corpus.NewStaticSource(lines...), config.CorpusConfig{}, nil)
	if err != nil {
		b.Fatal(err)
	}
	ex := New(eng, "")

	for _, dir := range []proximity.Direction{proximity.Bidirectional, proximity.Unidirectional} {
		b.Run(dir.String(), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				ctx := context.Background()
				for pb.Next() {
					if _, err := ex.Execute(ctx, "search /3 proximity", dir); err != nil {
						b.Error(err)
						return
					}
				}
			})
		})
	}
}
