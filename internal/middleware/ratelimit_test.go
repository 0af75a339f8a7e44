package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client), mr
}

func doRequest(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < RateLimitMaxRequests; i++ {
		rec := doRequest(handler, "198.51.100.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := doRequest(handler, "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiterBlocksIPAfterExceeding(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i <= RateLimitMaxRequests; i++ {
		doRequest(handler, "198.51.100.2")
	}

	// Blocked even after the counting window resets.
	mr.FastForward(RateLimitWindow * 2)
	rec := doRequest(handler, "198.51.100.2")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	require.NoError(t, limiter.UnblockIP("198.51.100.2"))
	rec = doRequest(handler, "198.51.100.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterIsolatesIPs(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i <= RateLimitMaxRequests; i++ {
		doRequest(handler, "198.51.100.3")
	}
	rec := doRequest(handler, "198.51.100.3")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(handler, "198.51.100.4")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := doRequest(handler, "198.51.100.5")
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}
