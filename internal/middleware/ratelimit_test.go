package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/trip-seat-reservation/internal/config"
)

func newRateContext(method, path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c
}

func TestRequestCost(t *testing.T) {
	cfg := config.RateLimitConfig{LockCost: 3}

	assert.Equal(t, 3, requestCost(cfg, newRateContext(http.MethodPost, "/v1/locks")))
	assert.Equal(t, 1, requestCost(cfg, newRateContext(http.MethodGet, "/v1/trips/:id/seats")))
	assert.Equal(t, 1, requestCost(cfg, newRateContext(http.MethodDelete, "/v1/sessions/:token/locks")))

	// A misconfigured cost never discounts below one token.
	cfg.LockCost = 0
	assert.Equal(t, 1, requestCost(cfg, newRateContext(http.MethodPost, "/v1/locks")))
}

func TestBuildRateKey(t *testing.T) {
	c := newRateContext(http.MethodPost, "/v1/locks")
	c.Set("user_id", "42")

	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:192.0.2.1"},
		{"user", "rl:user:42"},
		{"route", "rl:route:POST /v1/locks"},
		{"ip_route", "rl:ip:192.0.2.1:route:POST /v1/locks"},
		{"user_route", "rl:user:42:route:POST /v1/locks"},
		{"anything_else", "rl:ip:192.0.2.1:user:42:route:POST /v1/locks"},
	}
	for _, tc := range cases {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}
		assert.Equal(t, tc.want, buildRateKey(cfg, c), "strategy %s", tc.strategy)
	}
}

func TestBuildRateKeyGuest(t *testing.T) {
	c := newRateContext(http.MethodGet, "/v1/trips/:id/seats")
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
}
