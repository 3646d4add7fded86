package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache[string]()
	c.now = func() time.Time { return now }

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry expires at its deadline")
	assert.Equal(t, 1, c.Len(), "expiry on Get is lazy")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_DeleteFunc(t *testing.T) {
	c := NewMemoryCache[string]()
	c.Set("a", "user-1", time.Minute)
	c.Set("b", "user-1", time.Minute)
	c.Set("c", "user-2", time.Minute)

	n := c.DeleteFunc(func(v string) bool { return v == "user-1" })
	assert.Equal(t, 2, n)

	_, ok := c.Get("c")
	assert.True(t, ok)

	c.Delete("c")
	_, ok = c.Get("c")
	assert.False(t, ok)
}
