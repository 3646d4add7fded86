package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/policy"
	"github.com/raakeshmj/socialplane/internal/reliability"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type downStore struct{}

func (downStore) Hit(context.Context, limiter.WindowKey, int, time.Duration, time.Time) (limiter.Window, bool, error) {
	return limiter.Window{}, false, errors.New("dial tcp: connection refused")
}

func newLimiter(store limiter.Store, now time.Time, strategy reliability.FailureStrategy) *limiter.Limiter {
	return limiter.New(store,
		limiter.WithClock(func() time.Time { return now }),
		limiter.WithStrategy(func() reliability.FailureStrategy { return strategy }),
	)
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(WithUserID(r.Context(), userID))
}

type errorEnvelope struct {
	Error struct {
		Message    string         `json:"message"`
		Code       string         `json:"code"`
		StatusCode int            `json:"statusCode"`
		Details    map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRateLimit_DeniesPastCeiling(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimit(newLimiter(limiter.NewMemoryStore(), now, reliability.FailOpen), nil)
	h := rl.For(limiter.BucketAPIPostCreation)(okHandler)

	for i := 1; i <= 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/business-profiles", nil), "user-1"))
		require.Equal(t, http.StatusOK, rec.Code, "call %d", i)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(10-i), rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, strconv.FormatInt(now.Add(time.Minute).Unix(), 10), rec.Header().Get("X-RateLimit-Reset"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/business-profiles", nil), "user-1"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	env := decodeError(t, rec)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
	assert.Equal(t, "Rate limit exceeded", env.Error.Message)
	assert.Equal(t, 429, env.Error.StatusCode)
	assert.EqualValues(t, 60, env.Error.Details["retryAfter"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/business-profiles", nil), "user-2"))
	assert.Equal(t, http.StatusOK, rec.Code, "other users have their own window")
}

func TestRateLimit_RequiresIdentity(t *testing.T) {
	rl := NewRateLimit(newLimiter(limiter.NewMemoryStore(), time.Now(), reliability.FailOpen), nil)
	h := rl.For(limiter.BucketAPIDefault)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/brand-assets", nil)
	req.Header.Set(UserIDHeader, "spoofed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "RATE_LIMIT_IDENTITY_REQUIRED", env.Error.Code)
	assert.Equal(t, "User authentication required for rate limiting", env.Error.Message)
}

func TestRateLimit_HeaderIdentity(t *testing.T) {
	store := limiter.NewMemoryStore()
	rl := NewRateLimit(newLimiter(store, time.Now(), reliability.FailOpen), HeaderIdentity)
	h := rl.For(limiter.BucketAPIDefault)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/brand-assets", nil)
	req.Header.Set(UserIDHeader, "user-from-proxy")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 1, store.Len())
}

func TestRateLimit_StoreFailure(t *testing.T) {
	t.Run("fail open lets the call through", func(t *testing.T) {
		rl := NewRateLimit(newLimiter(downStore{}, time.Now(), reliability.FailOpen), nil)
		rec := httptest.NewRecorder()
		rl.For(limiter.BucketGeminiText)(okHandler).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/", nil), "u"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get("X-RateLimit-Degraded"))
	})

	t.Run("fail closed returns 503", func(t *testing.T) {
		rl := NewRateLimit(newLimiter(downStore{}, time.Now(), reliability.FailClosed), nil)
		rec := httptest.NewRecorder()
		rl.For(limiter.BucketGeminiText)(okHandler).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/", nil), "u"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "RATE_LIMITER_UNAVAILABLE", decodeError(t, rec).Error.Code)
	})
}

func TestRateLimit_ByPolicy(t *testing.T) {
	engine := policy.NewEngine()
	require.NoError(t, engine.LoadPolicies([]policy.Policy{
		{ID: "image", Matcher: policy.Matcher{Method: http.MethodPost, Path: "/api/brand-assets"}, Rules: policy.Rules{AuthRequired: true, Bucket: limiter.BucketAPIImageGeneration}},
		{ID: "stats", Matcher: policy.Matcher{Path: "/api/rate-limits"}, Rules: policy.Rules{AuthRequired: true}},
	}))

	rl := NewRateLimit(newLimiter(limiter.NewMemoryStore(), time.Now(), reliability.FailOpen), nil)
	h := Chain(okHandler, PolicyEnforcer(engine), rl.ByPolicy())

	for i := range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/brand-assets", nil), "u"))
		require.Equal(t, http.StatusOK, rec.Code, "call %d", i+1)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/brand-assets", nil), "u"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/rate-limits", nil), "u"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"), "routes without a bucket are not limited")
}

func TestRateLimit_ForUnknownBucketPanics(t *testing.T) {
	rl := NewRateLimit(newLimiter(limiter.NewMemoryStore(), time.Now(), reliability.FailOpen), nil)
	assert.Panics(t, func() { rl.For("nope") })
}
