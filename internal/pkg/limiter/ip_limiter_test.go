package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestIPRateLimiter_PerIPBuckets(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewIPRateLimiter(ctx, rate.Limit(0.001), 2)

	req.True(limiter.Allow("10.0.0.1"))
	req.True(limiter.Allow("10.0.0.1"))
	req.False(limiter.Allow("10.0.0.1"))

	// Another address has its own bucket
	req.True(limiter.Allow("10.0.0.2"))
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewIPRateLimiter(ctx, rate.Limit(0.001), 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "192.168.1.7:5555"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, r)
	req.Equal(http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, r)
	req.Equal(http.StatusTooManyRequests, second.Code)
}
