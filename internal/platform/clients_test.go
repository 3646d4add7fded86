package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/config"
)

func testConfig(store string) *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{Store: store, BreakerFailures: 3},
		Redis:     config.RedisConfig{URL: "not a url"},
	}
}

func TestLimiterStore_Memory(t *testing.T) {
	c := New(testConfig(config.StoreMemory))
	defer c.Close()

	s, err := c.LimiterStore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.StoreMemory, s.Kind)
	assert.NotNil(t, s.Memory)
	assert.Nil(t, s.Breaker)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestLimiterStore_BadRedisURL(t *testing.T) {
	c := New(testConfig(config.StoreRedis))
	defer c.Close()

	_, err := c.LimiterStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")

	// The failed attempt is remembered rather than retried.
	_, err2 := c.Redis(context.Background())
	assert.Equal(t, err, err2)
}

func TestLimiterStore_Unknown(t *testing.T) {
	c := New(testConfig("etcd"))
	_, err := c.LimiterStore(context.Background())
	assert.ErrorContains(t, err, "unknown rate limit store")
}
