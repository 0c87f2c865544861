package proximity

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

// bruteForce enumerates every pair of shared-document positions and keeps
// those that satisfy dir.
func bruteForce(p1, p2 index.PostingList, k int, dir Direction) []Occurrence {
	var out []Occurrence
	for _, a := range p1 {
		for _, b := range p2 {
			if a.DocID != b.DocID {
				continue
			}
			for _, pa := range a.Positions {
				for _, pb := range b.Positions {
					d := pb - pa
					if dir == Unidirectional && d >= 0 && d <= k {
						out = append(out, Occurrence{a.DocID, pa, pb})
					}
					if dir == Bidirectional && abs(d) <= k {
						out = append(out, Occurrence{a.DocID, pa, pb})
					}
				}
			}
		}
	}
	return out
}

func randomPostings(rng *rand.Rand, docs, maxPos int) index.PostingList {
	var pl index.PostingList
	for doc := 1; doc <= docs; doc++ {
		if rng.Intn(3) == 0 {
			continue
		}
		var positions []int
		for pos := 0; pos < maxPos; pos++ {
			if rng.Intn(4) == 0 {
				positions = append(positions, pos)
			}
		}
		if len(positions) == 0 {
			continue
		}
		pl = append(pl, index.PostingEntry{DocID: doc, Positions: positions})
	}
	return pl
}

var sortOccurrences = cmpopts.SortSlices(func(a, b Occurrence) bool {
	if a.DocID != b.DocID {
		return a.DocID < b.DocID
	}
	if a.PosA != b.PosA {
		return a.PosA < b.PosA
	}
	return a.PosB < b.PosB
})

func TestIntersectMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, dir := range []Direction{Bidirectional, Unidirectional} {
		for trial := 0; trial < 300; trial++ {
			p1 := randomPostings(rng, 8, 30)
			p2 := randomPostings(rng, 8, 30)
			k := rng.Intn(8)
			got := Intersect(p1, p2, k, dir)
			want := bruteForce(p1, p2, k, dir)
			if diff := cmp.Diff(want, got, sortOccurrences, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("%s trial %d k=%d mismatch (-want +got):\n%s", dir, trial, k, diff)
			}
		}
	}
}

func TestIntersectEmitsInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p1 := randomPostings(rng, 10, 40)
	p2 := randomPostings(rng, 10, 40)
	for _, dir := range []Direction{Bidirectional, Unidirectional} {
		got := Intersect(p1, p2, 5, dir)
		want := bruteForce(p1, p2, 5, dir)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s emission order mismatch (-want +got):\n%s", dir, diff)
		}
	}
}

func TestIntersectZeroDistance(t *testing.T) {
	p1 := index.PostingList{{DocID: 1, Positions: []int{2, 4}}}
	p2 := index.PostingList{{DocID: 1, Positions: []int{1, 3, 4}}}
	for _, dir := range []Direction{Bidirectional, Unidirectional} {
		got := Intersect(p1, p2, 0, dir)
		want := []Occurrence{{DocID: 1, PosA: 4, PosB: 4}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s k=0 mismatch (-want +got):\n%s", dir, diff)
		}
	}
}

func TestIntersectMonotonicInK(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	p1 := randomPostings(rng, 6, 50)
	p2 := randomPostings(rng, 6, 50)
	for _, dir := range []Direction{Bidirectional, Unidirectional} {
		prev := map[Occurrence]bool{}
		for k := 0; k <= 12; k++ {
			cur := map[Occurrence]bool{}
			for _, o := range Intersect(p1, p2, k, dir) {
				cur[o] = true
			}
			for o := range prev {
				if !cur[o] {
					t.Fatalf("%s: %+v matched at k=%d but not at k=%d", dir, o, k-1, k)
				}
			}
			prev = cur
		}
	}
}

func TestIntersectUnidirectionalReusesPosition(t *testing.T) {
	// Both A positions precede the single B position within k.
	p1 := index.PostingList{{DocID: 3, Positions: []int{0, 1}}}
	p2 := index.PostingList{{DocID: 3, Positions: []int{2}}}
	got := Intersect(p1, p2, 2, Unidirectional)
	want := []Occurrence{
		{DocID: 3, PosA: 0, PosB: 2},
		{DocID: 3, PosA: 1, PosB: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIntersectDisjointDocs(t *testing.T) {
	p1 := index.PostingList{{DocID: 1, Positions: []int{0}}, {DocID: 3, Positions: []int{0}}}
	p2 := index.PostingList{{DocID: 2, Positions: []int{0}}, {DocID: 4, Positions: []int{0}}}
	if got := Intersect(p1, p2, 100, Bidirectional); len(got) != 0 {
		t.Errorf("Intersect() = %v, want none", got)
	}
	if got := Intersect(p1, p2, -1, Bidirectional); got != nil {
		t.Errorf("Intersect(k=-1) = %v, want nil", got)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"", Bidirectional},
		{"bidirectional", Bidirectional},
		{"BI", Bidirectional},
		{"unidirectional", Unidirectional},
		{" uni ", Unidirectional},
		{"forward", Unidirectional},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDirection(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("ParseDirection(sideways) error = %v, want ErrInvalidInput", err)
	}
}

func BenchmarkIntersect(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	p1 := randomPostings(rng, 2000, 200)
	p2 := randomPostings(rng, 2000, 200)
	for _, dir := range []Direction{Bidirectional, Unidirectional} {
		for _, k := range []int{1, 5, 20} {
			b.Run(fmt.Sprintf("%s/k=%d", dir, k), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = Intersect(p1, p2, k, dir)
				}
			})
		}
	}
}
