//go:build integration

package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/raakeshmj/socialplane/internal/config"
	"github.com/raakeshmj/socialplane/internal/platform"
)

// Kills Redis under a running server and checks that limited routes keep answering.
func TestRedisOutage_FailsOpen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.RateLimit.Store = config.StoreRedis
	cfg.RateLimit.BreakerFailures = 3
	cfg.RateLimit.BreakerTimeout = time.Minute
	cfg.Redis.URL = uri

	clients := platform.New(cfg)
	t.Cleanup(func() { _ = clients.Close() })
	store, err := clients.LimiterStore(ctx)
	require.NoError(t, err)

	h, _ := newTestServer(t, cfg, store)
	token := signup(t, h, "owner@example.com")

	rec := do(t, h, http.MethodGet, "/api/business-profiles", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Degraded"))

	stopTimeout := 5 * time.Second
	require.NoError(t, container.Stop(ctx, &stopTimeout))

	for range 5 {
		rec = do(t, h, http.MethodGet, "/api/business-profiles", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "requests pass while redis is down")
		assert.Equal(t, "true", rec.Header().Get("X-RateLimit-Degraded"))
	}
	assert.Equal(t, "open", store.Breaker.State())

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	var report healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "open", report.Checks["ratelimit_breaker"])

	rec = do(t, h, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
