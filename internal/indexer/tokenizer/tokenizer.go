// Package tokenizer splits corpus lines into a document identifier and the
// positioned words that follow it. Words are taken verbatim: no case folding,
// punctuation stripping, stop-word removal or stemming is applied, so a query
// term matches only the exact whitespace-delimited token.
package tokenizer

import (
	"math"
	"strings"
)

// Token represents a single word and its zero-based position among the words
// that follow the identifier token.
type Token struct {
	Term     string
	Position int
}

// ExtractDocID derives a document identifier from the first
// whitespace-delimited token of line by concatenating every decimal digit it
// contains ("1.", "Doc12" and "#3a4" give 1, 12 and 34). It reports false when
// the token has no digit, when the digits evaluate to zero, or when the value
// does not fit in an int.
func ExtractDocID(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	first := fields[0]
	id := 0
	seen := false
	for i := 0; i < len(first); i++ {
		c := first[i]
		if c < '0' || c > '9' {
			continue
		}
		seen = true
		d := int(c - '0')
		if id > (math.MaxInt-d)/10 {
			return 0, false
		}
		id = id*10 + d
	}
	if !seen || id == 0 {
		return 0, false
	}
	return id, true
}

// Words returns the whitespace-delimited words of line after the identifier
// token, in order.
func Words(line string) []string {
	fields := strings.Fields(line)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// Tokenize returns the positioned words of line after the identifier token.
func Tokenize(line string) []Token {
	words := Words(line)
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
	}
	return tokens
}

// ParseLine combines ExtractDocID and Tokenize. ok is false when the line has
// no usable identifier, in which case the line must be skipped.
func ParseLine(line string) (docID int, tokens []Token, ok bool) {
	docID, ok = ExtractDocID(line)
	if !ok {
		return 0, nil, false
	}
	return docID, Tokenize(line), true
}
