package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiredEntryIsNotReturned(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("k", "v", 10*time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	defer c.Stop()

	c.SetWithTTL("k", "v", 5*time.Millisecond)
	assert.Equal(t, 1, c.Size())

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDelete(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k", "v")
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewCache(time.Minute)
	c.Stop()
	c.Stop()
}
