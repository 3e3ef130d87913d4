package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maxmove/maxmove-backend/pkg/config"
)

type fakeRateLimiterStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeRateLimiterStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func rateLimitTestConfig() config.AuthRateLimitConfig {
	return config.AuthRateLimitConfig{Window: time.Minute, IPLimit: 2}
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := &fakeRateLimiterStore{}
	handler := RateLimit("redirects", rateLimitTestConfig(), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimitCountsPerIP(t *testing.T) {
	store := &fakeRateLimiterStore{}
	handler := RateLimit("redirects", rateLimitTestConfig(), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	for _, addr := range []string{"203.0.113.7:1", "203.0.113.7:2", "198.51.100.9:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("addr %s status = %d, want 200", addr, rec.Code)
		}
	}

	if len(store.counts) != 2 {
		t.Fatalf("scopes = %d, want one per ip", len(store.counts))
	}
}

func TestRateLimitPrefersForwardedFor(t *testing.T) {
	store := &fakeRateLimiterStore{}
	handler := RateLimit("redirects", rateLimitTestConfig(), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, ok := store.counts["redirects:ip:203.0.113.7"]; !ok {
		t.Fatalf("expected forwarded ip scope, got %v", store.counts)
	}
}

func TestRateLimitDisabledWithoutStore(t *testing.T) {
	called := false
	handler := RateLimit("redirects", rateLimitTestConfig(), nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected passthrough, called=%v status=%d", called, rec.Code)
	}
}
