package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(5, time.Minute), nil)(okHandler())

	for i := range 5 {
		w := serve(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(2, time.Minute), nil)(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:9999", nil).Code)
	}

	w := serve(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(1, time.Minute), nil)(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(1, time.Minute), nil)(okHandler())
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, serve(handler, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "192.168.1.2:5555", xff).Code)
}

func TestRateLimit_APIKeyOrIP(t *testing.T) {
	handler := RateLimit(NewMemoryLimiter(1, time.Minute), APIKeyOrIP("api_key"))(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", map[string]string{"api_key": "key-a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.9:1", map[string]string{"api_key": "key-a"}).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", map[string]string{"api_key": "key-b"}).Code)
	// Anonymous requests from the same address have their own budget.
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", nil).Code)
}

func TestAPIKeyOrIP_HidesKey(t *testing.T) {
	keyFunc := APIKeyOrIP("api_key")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("api_key", "super-secret")
	key := keyFunc(req)
	assert.NotContains(t, key, "super-secret")
	assert.Len(t, key, len("key:")+16)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	now := time.Now()

	_, err := l.Allow(context.Background(), "a", now)
	require.NoError(t, err)
	require.Len(t, l.windows, 1)

	l.Cleanup(now.Add(time.Minute))
	assert.Len(t, l.windows, 1)

	l.Cleanup(now.Add(2 * time.Minute))
	assert.Empty(t, l.windows)
}

func TestRedisLimiter(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLimiter(db, "rl:", 2, time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	key := "rl:ip:1.2.3.4:" + strconv.FormatInt(start.Unix(), 10)

	for i, n := range []int64{1, 2, 3} {
		mock.ExpectTxPipeline()
		mock.ExpectIncr(key).SetVal(n)
		mock.ExpectPExpire(key, time.Minute).SetVal(true)
		mock.ExpectTxPipelineExec()

		d, err := l.Allow(context.Background(), "ip:1.2.3.4", now)
		require.NoError(t, err)
		assert.Equal(t, n <= 2, d.Allowed, "request %d", i+1)
		assert.Equal(t, max(2-int(n), 0), d.Remaining)
		assert.Equal(t, start.Add(time.Minute), d.ResetAt)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := RateLimit(failingLimiter{}, nil)(okHandler())

	w := serve(handler, "10.0.0.1:1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

// --- Mock implementations ---

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Time) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}
