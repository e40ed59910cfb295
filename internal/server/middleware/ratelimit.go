package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type trackedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets keys that have
// been idle for 30 minutes.
type limiterSet[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*trackedLimiter
	rps      rate.Limit
	burst    int
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	s := &limiterSet[K]{
		limiters: make(map[K]*trackedLimiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}

	// Background cleanup of stale limiters.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now().Add(-30 * time.Minute))
			case <-ctx.Done():
				return
			}
		}
	}()
	return s
}

func (s *limiterSet[K]) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tl := range s.limiters {
		if tl.lastAccess.Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

func (s *limiterSet[K]) allow(key K) bool {
	s.mu.Lock()
	tl, ok := s.limiters[key]
	if !ok {
		tl = &trackedLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = tl
	}
	tl.lastAccess = time.Now()
	s.mu.Unlock()

	return tl.limiter.Allow()
}

func tooManyRequests(w http.ResponseWriter) {
	http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints.
// Uses chi's RealIP middleware value via r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(r.RemoteAddr) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-user rate limiting to authenticated routes.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				// No user in context; skip rate limiting.
				next.ServeHTTP(w, r)
				return
			}
			if !set.allow(userID) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
