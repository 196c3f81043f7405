package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionalFailureDegrades(t *testing.T) {
	c := NewChecker()
	c.Require("snapshot", func(context.Context) error { return nil })
	c.Optional("redis", func(context.Context) error { return errors.New("connection refused") })

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusDegraded, report.Components["redis"].Status)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiredFailureIsDown(t *testing.T) {
	c := NewChecker()
	c.Require("snapshot", func(context.Context) error { return errors.New("not loaded") })
	c.Optional("redis", func(context.Context) error { return errors.New("down") })

	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
