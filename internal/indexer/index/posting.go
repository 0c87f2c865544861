package index

// PostingEntry records the ascending word positions at which a term occurs in
// one document.
type PostingEntry struct {
	DocID     int   `json:"doc_id"`
	Positions []int `json:"positions"`
}

// Frequency is the number of occurrences of the term in the document.
func (p PostingEntry) Frequency() int {
	return len(p.Positions)
}

// PostingList holds one entry per document, strictly ascending by DocID.
type PostingList []PostingEntry

// TermEntry pairs a term with its postings, as returned by Snapshot.
type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// Occurrences sums the position counts across every document in the list.
func (pl PostingList) Occurrences() int {
	n := 0
	for _, p := range pl {
		n += len(p.Positions)
	}
	return n
}
