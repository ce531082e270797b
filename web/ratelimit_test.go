package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterAllowsBurstPerClient(t *testing.T) {
	l := NewLimiter(LimiterConfig{Rate: rate.Limit(0.001), Burst: 2})
	t.Cleanup(l.Stop)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per client")
	assert.Equal(t, 2, l.Len())
}

func TestLimiterCleanupDropsIdleClients(t *testing.T) {
	l := NewLimiter(LimiterConfig{CleanupInterval: time.Minute})
	t.Cleanup(l.Stop)

	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	l.Allow("idle")

	now = now.Add(time.Minute)
	l.Allow("active")

	now = now.Add(90 * time.Second)
	l.cleanup()
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Allow("active"))
}

func TestLimiterMiddlewareRejectsWith429(t *testing.T) {
	var routes []string
	l := NewLimiter(LimiterConfig{Rate: rate.Limit(0.5), Burst: 1, OnLimited: func(route string) {
		routes = append(routes, route)
	}})
	t.Cleanup(l.Stop)

	srv := newRouterServer()
	srv.Router().Post("/signin", func(ctx router.Context) error {
		return ctx.SendString("ok")
	}, l.Middleware("/signin", nil))
	app := srv.WrappedRouter()

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/signin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))
	assert.Equal(t, MsgTooManyRequests, readBody(t, resp))
	assert.Equal(t, []string{"/signin"}, routes)
}

func TestLimiterStopIsIdempotent(t *testing.T) {
	l := NewLimiter(LimiterConfig{})
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestSanitizerBanner(t *testing.T) {
	s := newSanitizer()

	assert.Equal(t, "Check your inbox", s.Banner("  <em>Check</em> your inbox "))
	assert.Equal(t, "Tom & Jerry", s.Banner("Tom &amp; Jerry"))
	assert.Empty(t, s.Banner("<script>alert(1)</script>"))
	assert.Len(t, []rune(s.Banner(strings.Repeat("a", 400))), maxBannerLength)
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, SiteName, PageTitle(""))
	assert.Equal(t, "Sign In | Chinese Antique Gallery", PageTitle("Sign In"))
}
