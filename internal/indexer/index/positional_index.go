// Package index builds the immutable positional inverted index that proximity
// queries are answered from.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

// PositionalIndex maps each term to its postings. It is never modified after
// Build returns, so a single instance may be shared by any number of
// concurrent readers without locking. Slices returned by its methods must be
// treated as read-only.
type PositionalIndex struct {
	postings   map[string]PostingList
	docCount   int
	lineCount  int
	skipped    int
	duplicates int
	positions  int
}

// Build indexes lines. Each line is expected to start with a document
// identifier token (see tokenizer.ExtractDocID); lines without a usable
// identifier are skipped and counted, not rejected. When several lines carry
// the same identifier the last one is indexed. An empty line sequence fails
// with ErrEmptyCorpus.
func Build(lines []string) (*PositionalIndex, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("building positional index: %w", apperrors.ErrEmptyCorpus)
	}
	idx := &PositionalIndex{
		postings:  make(map[string]PostingList),
		lineCount: len(lines),
	}

	docs := make(map[int]string, len(lines))
	for _, line := range lines {
		id, ok := tokenizer.ExtractDocID(line)
		if !ok {
			idx.skipped++
			continue
		}
		if _, exists := docs[id]; exists {
			idx.duplicates++
		}
		docs[id] = line
	}

	// Visiting documents in ascending id order keeps every posting list
	// sorted by DocID and lets a repeated term extend the last entry.
	ids := make([]int, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		for _, token := range tokenizer.Tokenize(docs[id]) {
			idx.add(token.Term, id, token.Position)
		}
	}
	idx.docCount = len(ids)
	return idx, nil
}

func (idx *PositionalIndex) add(term string, docID, position int) {
	pl := idx.postings[term]
	if n := len(pl); n > 0 && pl[n-1].DocID == docID {
		pl[n-1].Positions = append(pl[n-1].Positions, position)
	} else {
		pl = append(pl, PostingEntry{
			DocID:     docID,
			Positions: []int{position},
		})
	}
	idx.postings[term] = pl
	idx.positions++
}

// Lookup returns the postings of term. ok is false when the term does not
// occur in any indexed document; an empty list is never returned.
func (idx *PositionalIndex) Lookup(term string) (PostingList, bool) {
	pl, ok := idx.postings[term]
	return pl, ok
}

// Snapshot returns every term with its postings, ordered by term.
func (idx *PositionalIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.postings))
	for term, pl := range idx.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: pl,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// TermCount is the number of distinct terms.
func (idx *PositionalIndex) TermCount() int { return len(idx.postings) }

// DocCount is the number of distinct documents indexed.
func (idx *PositionalIndex) DocCount() int { return idx.docCount }

// LineCount is the number of input lines, including skipped ones.
func (idx *PositionalIndex) LineCount() int { return idx.lineCount }

// Skipped is the number of lines dropped for lacking a document identifier.
func (idx *PositionalIndex) Skipped() int { return idx.skipped }

// Duplicates is the number of lines that were overwritten by a later line
// with the same document identifier.
func (idx *PositionalIndex) Duplicates() int { return idx.duplicates }

// PositionCount is the total number of indexed word occurrences.
func (idx *PositionalIndex) PositionCount() int { return idx.positions }
