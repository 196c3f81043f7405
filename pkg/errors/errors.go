// Package errors defines the sentinel errors shared by the loaders, the query
// path and the HTTP layer, plus an AppError type that pins a sentinel to an
// HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingResource marks an absent lemma source, index file or weight
	// directory. Loaders degrade to an empty structure instead of failing.
	ErrMissingResource = errors.New("missing resource")
	// ErrMalformedRecord marks a single unparsable line; the line is skipped.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrEmptyQuery means no query token resolved to a lemma.
	ErrEmptyQuery = errors.New("no lemma recognized in query")
	// ErrNoResults means ranking produced no scored document.
	ErrNoResults = errors.New("no results")

	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("operation timed out")
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

// Is reports whether err matches target. It re-exports errors.Is so callers
// importing this package under the name "errors" keep access to it.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code returns a stable machine-readable identifier for API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEmptyQuery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoResults):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingResource), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
