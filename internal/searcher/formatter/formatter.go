// Package formatter turns proximity occurrences into display records.
package formatter

import (
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
)

// DefaultPrefix is prepended to numeric document ids for display.
const DefaultPrefix = "Doc"

// Result is the externally visible form of a proximity occurrence.
type Result struct {
	DocID string `json:"doc_id"`
	PosA  int    `json:"pos_a"`
	PosB  int    `json:"pos_b"`
}

// Format labels each occurrence with prefix+id and orders the records by that
// label as plain strings, so "Doc10" sorts before "Doc2". The sort is stable:
// records sharing a label keep the order the intersector emitted them in.
func Format(occurrences []proximity.Occurrence, prefix string) []Result {
	results := make([]Result, 0, len(occurrences))
	for _, o := range occurrences {
		results = append(results, Result{
			DocID: prefix + strconv.Itoa(o.DocID),
			PosA:  o.PosA,
			PosB:  o.PosB,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DocID < results[j].DocID
	})
	return results
}
