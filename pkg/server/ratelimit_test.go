package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/clearlane/bounty/pkg/server"
)

func TestRateLimiter_Allow(t *testing.T) {
	// Create a limiter that allows 5 requests per second with burst of 5
	limiter := server.NewRateLimiter(rate.Limit(5), 5)

	ip := "192.168.1.1"

	// First 5 requests should be allowed (burst)
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ip), "request %d should be allowed", i+1)
	}

	// 6th request should be denied (burst exhausted)
	assert.False(t, limiter.Allow(ip), "request 6 should be denied")

	// Different IP should have its own limit
	otherIP := "192.168.1.2"
	assert.True(t, limiter.Allow(otherIP), "different IP should be allowed")
}

func TestRateLimiter_Refill(t *testing.T) {
	// Create a limiter that allows 10 requests per second with burst of 2
	limiter := server.NewRateLimiter(rate.Limit(10), 2)

	ip := "192.168.1.1"

	// Exhaust burst
	assert.True(t, limiter.Allow(ip))
	assert.True(t, limiter.Allow(ip))
	assert.False(t, limiter.Allow(ip))

	// Wait for token to refill (100ms = 1 token at 10/sec)
	time.Sleep(150 * time.Millisecond)

	// Should be allowed again
	assert.True(t, limiter.Allow(ip), "should be allowed after refill")
}

func TestRateLimiter_Stop(t *testing.T) {
	limiter := server.NewRateLimiter(rate.Limit(5), 5)

	// Stop is idempotent and only ends background eviction; the limiter
	// still answers Allow afterwards.
	limiter.Stop()
	limiter.Stop()

	ip := "192.168.1.3"
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ip), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ip), "request 6 should be denied")
}

func TestRateLimitMiddleware_JSONResponse(t *testing.T) {
	limiter := server.NewRateLimiter(rate.Limit(1), 1)

	middleware := server.RateLimitMiddleware(limiter)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First request should pass
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.50:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second request should be rate limited
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
