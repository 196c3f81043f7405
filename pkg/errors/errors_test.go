package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", ErrEmptyQuery, http.StatusUnprocessableEntity},
		{"no results", fmt.Errorf("ranking: %w", ErrNoResults), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"missing resource", ErrMissingResource, http.StatusServiceUnavailable},
		{"app error wins", New(ErrNoResults, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "empty_query", Code(fmt.Errorf("wrap: %w", ErrEmptyQuery)))
	assert.Equal(t, "no_results", Code(ErrNoResults))
	assert.Equal(t, "internal", Code(fmt.Errorf("other")))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1)
	assert.True(t, Is(err, ErrInvalidInput))
	assert.Equal(t, "invalid input: limit -1", err.Error())
}
