package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCorpus    = errors.New("empty corpus")
	ErrUnknownTerm    = errors.New("unknown term")
	ErrMalformedQuery = errors.New("malformed query")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnavailable    = errors.New("service unavailable")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Kind returns a short label for the sentinel err wraps, suitable for
// metric labels and analytics events. Unrecognised errors are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCorpus):
		return "empty_corpus"
	case errors.Is(err, ErrUnknownTerm):
		return "unknown_term"
	case errors.Is(err, ErrMalformedQuery):
		return "malformed_query"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownTerm):
		return http.StatusNotFound
	case errors.Is(err, ErrMalformedQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyCorpus), errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
