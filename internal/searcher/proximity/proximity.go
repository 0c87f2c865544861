// Package proximity intersects two positional posting lists under a word
// distance constraint.
package proximity

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

// Direction selects which relative orders of the two terms qualify.
type Direction int

const (
	// Bidirectional accepts |posB - posA| <= k.
	Bidirectional Direction = iota
	// Unidirectional accepts 0 <= posB - posA <= k.
	Unidirectional
)

func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case Unidirectional:
		return "unidirectional"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts the String form of a Direction and the short aliases
// "bi", "uni" and "forward". An empty string means Bidirectional.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bidirectional", "bi":
		return Bidirectional, nil
	case "unidirectional", "uni", "forward":
		return Unidirectional, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 0, "unknown direction %q", s)
	}
}

// Occurrence witnesses term A at PosA and term B at PosB in document DocID.
type Occurrence struct {
	DocID int
	PosA  int
	PosB  int
}

// Intersect returns every occurrence pair of the documents shared by p1
// (term A) and p2 (term B) that satisfies the distance predicate of dir.
// Both lists must be sorted by DocID with ascending positions, as produced by
// index.Build. Pairs are emitted by ascending DocID, then PosA, then PosB. A
// negative k matches nothing.
func Intersect(p1, p2 index.PostingList, k int, dir Direction) []Occurrence {
	if k < 0 {
		return nil
	}
	var (
		out    []Occurrence
		window []int
	)
	i, j := 0, 0
	for i < len(p1) && j < len(p2) {
		switch {
		case p1[i].DocID == p2[j].DocID:
			if dir == Unidirectional {
				out = forward(out, p1[i].DocID, p1[i].Positions, p2[j].Positions, k)
			} else {
				out, window = within(out, window[:0], p1[i].DocID, p1[i].Positions, p2[j].Positions, k)
			}
			i++
			j++
		case p1[i].DocID < p2[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}

// within sweeps pp2 once while keeping a FIFO window of the pp2 positions
// that are within k of some pos1 seen so far. Because pos1 only grows, a
// window entry that falls more than k behind the current pos1 can be dropped
// from the front for good.
func within(out []Occurrence, window []int, docID int, pp1, pp2 []int, k int) ([]Occurrence, []int) {
	ptr := 0
	for _, pos1 := range pp1 {
		for ptr < len(pp2) {
			if abs(pp2[ptr]-pos1) <= k {
				window = append(window, pp2[ptr])
			} else if pp2[ptr] > pos1 {
				break
			}
			ptr++
		}
		for len(window) > 0 && abs(window[0]-pos1) > k {
			window = window[1:]
		}
		for _, pos2 := range window {
			out = append(out, Occurrence{DocID: docID, PosA: pos1, PosB: pos2})
		}
	}
	return out, window
}

// forward skips pp2 positions that precede pos1 with a pointer that never
// moves back, then scans ahead without consuming so the same pos2 can pair
// with several successive pos1 values.
func forward(out []Occurrence, docID int, pp1, pp2 []int, k int) []Occurrence {
	start := 0
	for _, pos1 := range pp1 {
		for start < len(pp2) && pp2[start] < pos1 {
			start++
		}
		for ptr := start; ptr < len(pp2) && pp2[ptr]-pos1 <= k; ptr++ {
			out = append(out, Occurrence{DocID: docID, PosA: pos1, PosB: pp2[ptr]})
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
