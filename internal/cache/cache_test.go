package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetAndGet(t *testing.T) {
	c := New[string](time.Hour)

	c.Set("eu-west-1", "key-1")
	value, found := c.Get("eu-west-1")

	assert.True(t, found)
	assert.Equal(t, "key-1", value)

	_, found = c.Get("us-east-1")
	assert.False(t, found)
}

func TestTTLCache_Expiration(t *testing.T) {
	now := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New[string](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("eu-west-1", "key-1")

	now = now.Add(time.Minute)
	_, found := c.Get("eu-west-1")
	assert.True(t, found, "expiry is exclusive")

	now = now.Add(time.Second)
	_, found = c.Get("eu-west-1")
	assert.False(t, found)
	assert.Zero(t, c.Stats().Size)
}

func TestTTLCache_NoTTL(t *testing.T) {
	now := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](0)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(24 * 365 * time.Hour)

	value, found := c.Get("k")
	assert.True(t, found)
	assert.Equal(t, 1, value)
}

func TestTTLCache_DeleteAndStats(t *testing.T) {
	c := New[string](time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Get("missing")
	c.Delete("b")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}
