package formatter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
)

func TestFormatLexicographicOrder(t *testing.T) {
	occ := []proximity.Occurrence{
		{DocID: 2, PosA: 0, PosB: 1},
		{DocID: 10, PosA: 4, PosB: 3},
		{DocID: 1, PosA: 5, PosB: 6},
		{DocID: 10, PosA: 7, PosB: 8},
	}
	got := Format(occ, DefaultPrefix)
	want := []Result{
		{DocID: "Doc1", PosA: 5, PosB: 6},
		{DocID: "Doc10", PosA: 4, PosB: 3},
		{DocID: "Doc10", PosA: 7, PosB: 8},
		{DocID: "Doc2", PosA: 0, PosB: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Format() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatCustomPrefix(t *testing.T) {
	got := Format([]proximity.Occurrence{{DocID: 3, PosA: 1, PosB: 2}}, "article-")
	want := []Result{{DocID: "article-3", PosA: 1, PosB: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Format() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatEmpty(t *testing.T) {
	got := Format(nil, DefaultPrefix)
	if got == nil || len(got) != 0 {
		t.Errorf("Format(nil) = %#v, want empty non-nil slice", got)
	}
}
