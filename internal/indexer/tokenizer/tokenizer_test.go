package tokenizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractDocID(t *testing.T) {
	tests := []struct {
		line   string
		wantID int
		wantOK bool
	}{
		{"1 schizophrenia drug", 1, true},
		{"1. schizophrenia drug", 1, true},
		{"Doc12 new approach", 12, true},
		{"#3a4 words", 34, true},
		{"  7\ttabbed line", 7, true},
		{"007 bond", 7, true},
		{"0 zero is skipped", 0, false},
		{"00 still zero", 0, false},
		{"title without digits", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"99999999999999999999999 overflow", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			id, ok := ExtractDocID(tt.line)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ExtractDocID(%q) = (%d, %v), want (%d, %v)", tt.line, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("4 New schizophrenia drug  Drug.")
	want := []Token{
		{Term: "New", Position: 0},
		{Term: "schizophrenia", Position: 1},
		{Term: "drug", Position: 2},
		{Term: "Drug.", Position: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeIdentifierOnly(t *testing.T) {
	if got := Tokenize("5"); len(got) != 0 {
		t.Errorf("Tokenize(%q) = %v, want no tokens", "5", got)
	}
}

func TestParseLine(t *testing.T) {
	id, tokens, ok := ParseLine("2 new approach")
	if !ok || id != 2 || len(tokens) != 2 {
		t.Fatalf("ParseLine() = (%d, %v, %v)", id, tokens, ok)
	}
	if _, _, ok := ParseLine("header line"); ok {
		t.Error("ParseLine() accepted a line without an identifier")
	}
}

func BenchmarkTokenize(b *testing.B) {
	line := "42 distributed search engines process queries across multiple shards to achieve horizontal scalability"
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(line)
	}
}
