// Package redisstore keeps rate-limit windows in Redis. One hash per (user, platform,
// limit type) holds the live window; a Lua script decides and increments in one round trip
// and the key expires together with its window.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/raakeshmj/socialplane/internal/limiter"
)

const keyPrefix = "ratelimit:window:"

// KEYS[1] = window key
// ARGV[1] = now (unix ms)
// ARGV[2] = calls limit
// ARGV[3] = window length (ms)
// ARGV[4] = id for a new window
// Returns: {allowed, id, window_start, resets_at, calls_made, calls_limit}
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local state = redis.call("HMGET", key, "id", "window_start", "resets_at", "calls_made", "calls_limit")
local resets_at = tonumber(state[3])

if not resets_at or now >= resets_at then
	resets_at = now + window
	redis.call("HSET", key, "id", ARGV[4], "window_start", now, "resets_at", resets_at, "calls_made", 1, "calls_limit", limit)
	redis.call("PEXPIRE", key, window)
	return {1, ARGV[4], now, resets_at, 1, limit}
end

local calls = tonumber(state[4])
local cap = tonumber(state[5])
if calls < cap then
	calls = redis.call("HINCRBY", key, "calls_made", 1)
	return {1, state[1], tonumber(state[2]), resets_at, calls, cap}
end

return {0, state[1], tonumber(state[2]), resets_at, calls, cap}
`)

// Store implements limiter.Store on Redis.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Key is the Redis key holding the window for k.
func Key(k limiter.WindowKey) string {
	return keyPrefix + k.UserID + ":" + string(k.Platform) + ":" + k.LimitType
}

func (s *Store) Hit(ctx context.Context, key limiter.WindowKey, limit int, window time.Duration, now time.Time) (limiter.Window, bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{Key(key)},
		now.UnixMilli(), limit, window.Milliseconds(), uuid.NewString(),
	).Slice()
	if err != nil {
		return limiter.Window{}, false, fmt.Errorf("redis window hit: %w", err)
	}
	if len(res) != 6 {
		return limiter.Window{}, false, fmt.Errorf("redis window hit: unexpected reply length %d", len(res))
	}

	nums := make([]int64, 0, 5)
	for _, i := range []int{0, 2, 3, 4, 5} {
		n, err := toInt64(res[i])
		if err != nil {
			return limiter.Window{}, false, fmt.Errorf("redis window hit: field %d: %w", i, err)
		}
		nums = append(nums, n)
	}
	id, _ := res[1].(string)

	w := limiter.Window{
		ID:          id,
		Key:         key,
		WindowStart: time.UnixMilli(nums[1]),
		ResetsAt:    time.UnixMilli(nums[2]),
		CallsMade:   int(nums[3]),
		CallsLimit:  int(nums[4]),
	}
	w.Duration = w.ResetsAt.Sub(w.WindowStart)
	return w, nums[0] == 1, nil
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
