package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown term", fmt.Errorf("looking up %q: %w", "drug", ErrUnknownTerm), http.StatusNotFound},
		{"malformed query", fmt.Errorf("parsing: %w", ErrMalformedQuery), http.StatusBadRequest},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"empty corpus", fmt.Errorf("building index: %w", ErrEmptyCorpus), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error wins", Newf(ErrUnknownTerm, http.StatusTeapot, "term %q", "x"), http.StatusTeapot},
		{"app error without status", New(ErrMalformedQuery, 0, "bad"), http.StatusBadRequest},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrUnknownTerm), "unknown_term"},
		{New(ErrMalformedQuery, http.StatusBadRequest, "bad"), "malformed_query"},
		{ErrEmptyCorpus, "empty_corpus"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrUnknownTerm, http.StatusNotFound, "term %q is not indexed", "drug")
	if !errors.Is(err, ErrUnknownTerm) {
		t.Fatalf("errors.Is(%v, ErrUnknownTerm) = false", err)
	}
	want := `unknown term: term "drug" is not indexed`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
