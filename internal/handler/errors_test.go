package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/ratelimit"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{apperr.Invalid("bad"), http.StatusBadRequest},
		{apperr.ErrSelfRequest, http.StatusBadRequest},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
		{apperr.ErrNotAuthorized, http.StatusForbidden},
		{apperr.ErrNotMember, http.StatusForbidden},
		{fmt.Errorf("%w: friendship x", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrDuplicateRequest, http.StatusConflict},
		{apperr.ErrInvalidTransition, http.StatusConflict},
		{apperr.ErrEmailTaken, http.StatusConflict},
		{ratelimit.ErrRateLimited, http.StatusTooManyRequests},
		{apperr.Transport(errors.New("connection refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, statusFor(tt.err))
		})
	}
}

func TestLimitQuery(t *testing.T) {
	assert.Equal(t, 0, limitQueryOf(t, ""))
	assert.Equal(t, 0, limitQueryOf(t, "abc"))
	assert.Equal(t, 0, limitQueryOf(t, "-3"))
	assert.Equal(t, 25, limitQueryOf(t, "25"))
	assert.Equal(t, MaxPageSize, limitQueryOf(t, "1000"))
}

func TestNewListResponseNeverNil(t *testing.T) {
	resp := NewListResponse[string](nil, 10)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, 0, resp.Meta.Count)
	assert.Equal(t, 10, resp.Meta.Limit)
}

func limitQueryOf(t *testing.T, raw string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)
	return limitQuery(c)
}
