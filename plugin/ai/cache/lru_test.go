package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

func TestLRUCache_TTL(t *testing.T) {
	clock := aitime.NewFakeClock(time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC))
	c := NewLRUCache[string](10, 5*time.Minute, clock)

	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute, nil)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a")
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute, nil)
	c.Set("context:local", 1, 0)
	c.Set("context:social", 2, 0)
	c.Set("reply:abc", 3, 0)

	assert.Equal(t, 2, c.Invalidate("context:*"))
	assert.Equal(t, 1, c.Invalidate("reply:abc"))
	assert.Zero(t, c.Invalidate("missing"))
	assert.Zero(t, c.Size())
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	clock := aitime.NewFakeClock(time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC))
	c := NewLRUCache[int](10, time.Minute, clock)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 1, c.Size())
	c.Clear()
	assert.Zero(t, c.Size())
}
