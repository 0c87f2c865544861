package parser

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

// Query is a parsed "A /k B" proximity query. Terms are kept verbatim.
type Query struct {
	TermA    string
	TermB    string
	K        int
	RawQuery string
}

// String renders the query in canonical single-space form.
func (q *Query) String() string {
	return fmt.Sprintf("%s /%d %s", q.TermA, q.K, q.TermB)
}

func Parse(query string) (*Query, error) {
	words := strings.Fields(query)
	if len(words) != 3 {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0,
			"expected 3 tokens \"<term> /<k> <term>\", got %d in %q", len(words), query)
	}
	k, err := parseDistance(words[1])
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0,
			"invalid distance %q in %q: %v", words[1], query, err)
	}
	return &Query{
		TermA:    words[0],
		TermB:    words[2],
		K:        k,
		RawQuery: query,
	}, nil
}

// parseDistance accepts a slash followed by one or more ASCII digits.
func parseDistance(tok string) (int, error) {
	digits, ok := strings.CutPrefix(tok, "/")
	if !ok {
		return 0, fmt.Errorf("missing leading '/'")
	}
	if digits == "" {
		return 0, fmt.Errorf("missing distance after '/'")
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("distance must be a non-negative integer")
		}
	}
	k, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("distance out of range")
	}
	return k, nil
}
