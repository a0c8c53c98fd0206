package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

func TestRateLimit_SharesBucketAcrossPorts(t *testing.T) {
	lim := &countingLimiter{hits: map[string]int{}}
	s := &Server{opts: Options{RateLimiter: lim}, logger: zerolog.Nop()}
	h := s.rateLimit("login", 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i, port := range []string{"40001", "40002", "40003"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:" + port
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want[i], rec.Code, "request from port %s", port)
	}

	require.Len(t, lim.hits, 1)
	assert.Equal(t, 3, lim.hits["ratelimit:login:ip:203.0.113.7"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "[2001:db8::1]:5555"
	assert.Equal(t, "2001:db8::1", clientIP(req))

	req.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", clientIP(req))
}
