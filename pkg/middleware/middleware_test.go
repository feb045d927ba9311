package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "slotify/pkg/errors"
	httputil "slotify/pkg/http"
	"slotify/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestUserRateLimiter_SlidingWindow(t *testing.T) {
	limiter := NewUserRateLimiter(2, time.Minute)
	defer limiter.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "user:alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "user:alice")
	assert.False(t, ok)

	ok, _ = limiter.Allow(ctx, "user:bob")
	assert.True(t, ok, "limits are tracked per key")

	ok, _ = limiter.Allow(ctx, "")
	assert.True(t, ok, "unkeyed requests are not limited")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingLimiter) Stop() {}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewUserRateLimiter(1, time.Minute)
	defer limiter.Stop()

	handler := RateLimit(limiter, func(r *http.Request) string {
		return r.Header.Get("X-Caller")
	}, time.Minute, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	req.Header.Set("X-Caller", "user:alice")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.CodeTooManyRequests, decodeErrorCode(t, rec))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := RateLimit(failingLimiter{}, nil, time.Minute, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "ip:10.0.0.5", ClientIP(req))
}

func TestIdempotency_ReplaysPost(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, func(r *http.Request) string {
		return r.Header.Get("X-Caller")
	}, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		_ = httputil.WriteCreated(w, "created", map[string]int32{"call": n})
	}))

	send := func(caller, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/slots", strings.NewReader(`{}`))
		req.Header.Set("X-Caller", caller)
		req.Header.Set(IdempotencyHeader, key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("user:alice", "k1")
	second := send("user:alice", "k1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	other := send("user:bob", "k1")
	assert.Empty(t, other.Header().Get(IdempotentReplayed))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_SkipsErrorsAndOtherMethods(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, nil, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = httputil.WriteError(w, apperrors.Conflict("Slot is no longer available"))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/bookings/1", nil)
		req.Header.Set(IdempotencyHeader, "k1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/bookings/1", nil)
		req.Header.Set(IdempotencyHeader, "k2")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	defer store.Stop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusOK}))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/slots", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/slots", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/bookings/abc", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "bodiless POST needs no content type")
}

func TestRequestTimeout(t *testing.T) {
	handler := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.Equal(t, apperrors.CodeTimeout, decodeErrorCode(t, rec))
}

func TestRequestTimeout_HandlerHeadersDoNotRaceTimeoutResponse(t *testing.T) {
	release := make(chan struct{})
	exited := make(chan struct{})
	handler := RequestTimeout(5 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(exited)
		for i := 0; ; i++ {
			select {
			case <-release:
				return
			default:
				w.Header().Set("X-Attempt", strconv.Itoa(i))
			}
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	close(release)
	<-exited

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.CodeTimeout, decodeErrorCode(t, rec))
	assert.Empty(t, rec.Header().Get("X-Attempt"))
}

func TestRequestTimeout_PassesHeadersThrough(t *testing.T) {
	handler := RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/slots/1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/slots", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/slots/1", rec.Header().Get("Location"))
	assert.Equal(t, "{}", rec.Body.String())

	handler = RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperrors.CodeInternal, decodeErrorCode(t, rec))
}

func TestRequestLogging_AssignsRequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
}
