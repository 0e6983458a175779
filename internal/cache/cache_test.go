package cache_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/cache"
	"github.com/jsbuild/bundlecore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := cache.NewPluginCache(config.CacheOptions{})
	_, ok := c.Get("resolve-plugin", "./a.js")
	assert.False(t, ok)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := cache.NewPluginCache(config.CacheOptions{})
	c.Set("resolve-plugin", "./a.js", "/abs/a.js")

	value, ok := c.Get("resolve-plugin", "./a.js")
	require.True(t, ok)
	assert.Equal(t, "/abs/a.js", value)
}

func TestGetIncrementsCounter(t *testing.T) {
	c := cache.NewPluginCache(config.CacheOptions{})
	c.Set("p", "k", 1)

	c.Get("p", "k")
	c.Get("p", "k")

	snap := c.Snapshot()
	assert.Equal(t, 2, snap["p"]["k"].Counter)
}

func TestSweepEvictsEntriesAtOrAboveExpiry(t *testing.T) {
	c := cache.NewPluginCache(config.CacheOptions{})
	c.Set("p", "stale", 1)
	c.Set("p", "fresh", 2)

	c.Get("p", "stale")
	c.Get("p", "stale")
	c.Get("p", "fresh")

	c.Sweep(2)

	_, staleOK := c.Get("p", "stale")
	_, freshOK := c.Get("p", "fresh")
	assert.False(t, staleOK)
	assert.True(t, freshOK)
}

func TestSweepDisabledWhenExpiryNonPositive(t *testing.T) {
	c := cache.NewPluginCache(config.CacheOptions{})
	c.Set("p", "k", 1)
	c.Get("p", "k")
	c.Get("p", "k")

	c.Sweep(0)

	_, ok := c.Get("p", "k")
	assert.True(t, ok)
}

func TestNewPluginCacheSeedsFromPriorSnapshot(t *testing.T) {
	seed := config.CacheOptions{
		Enabled: true,
		Plugins: map[string]map[string]config.CacheEntry{
			"p": {"k": {Counter: 3, Value: "v"}},
		},
	}
	c := cache.NewPluginCache(seed)

	value, ok := c.Get("p", "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	snap := c.Snapshot()
	assert.Equal(t, 4, snap["p"]["k"].Counter)
}

func TestNewPluginCacheIgnoresSeedWhenDisabled(t *testing.T) {
	seed := config.CacheOptions{
		Enabled: false,
		Plugins: map[string]map[string]config.CacheEntry{
			"p": {"k": {Counter: 3, Value: "v"}},
		},
	}
	c := cache.NewPluginCache(seed)

	_, ok := c.Get("p", "k")
	assert.False(t, ok)
}
