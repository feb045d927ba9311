package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "slotify/pkg/errors"
	httputil "slotify/pkg/http"
	"slotify/pkg/logger"
)

// RateLimiter decides whether the caller identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Stop()
}

// KeyExtractor identifies the caller a request is counted against.
type KeyExtractor func(r *http.Request) string

// UserRateLimiter is an in-process sliding window per caller key.
type UserRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stopCh   chan struct{}
	once     sync.Once
}

func NewUserRateLimiter(limit int, window time.Duration) *UserRateLimiter {
	limiter := &UserRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *UserRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, nil
	}

	rl.requests[key] = append(valid, now)
	return true, nil
}

// RateLimit rejects callers over their limit with 429. Limiter failures let
// the request through.
func RateLimit(limiter RateLimiter, extractor KeyExtractor, window time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	if extractor == nil {
		extractor = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractor(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("Rate limiter unavailable", "request_id", RequestID(r.Context()), "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"key", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				_ = httputil.WriteError(w, apperrors.TooManyRequests("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
