// Package cache implements spec.md section 6's persisted cache shape: a
// per-plugin key/value store with an access counter, evicted at
// cacheSnapshot() time by comparing each entry's counter against
// experimentalCacheExpiry.
//
// Grounded on the teacher's internal/cache/cache_plugin.go PluginCache
// (a per-path map guarded by one mutex, read/written by the resolve/load
// plugin host), generalized from the teacher's single unkeyed load-result
// cache to spec.md's per-plugin, per-key `{counter, value}` store. The
// teacher's own map+mutex has no eviction policy at all; golang-lru/v2 (as
// used by Keyhole-Koro-InsightifyCore for its own request-scoped caches)
// gives the bounded, thread-safe key/value store this needs almost for
// free, leaving only the counter bump and expiry sweep to write.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jsbuild/bundlecore/internal/config"
)

// defaultPluginStoreSize bounds how many distinct keys one plugin's store
// may hold before the LRU itself starts evicting, independent of the
// counter-based expiry sweep. Plugin caches are small key/value stores (a
// resolved path, a transform result) by design, not a general memoization
// layer, so this comfortably covers real usage without unbounded growth.
const defaultPluginStoreSize = 4096

// PluginCache is the per-build store of spec.md section 6's `cache.plugins`
// shape: pluginName -> key -> {counter, value}, engine will not read the
// value structurally, it is opaque to every part of the core except the
// plugin that wrote it.
type PluginCache struct {
	mu     sync.Mutex
	stores map[string]*lru.Cache[string, *config.CacheEntry]
}

// NewPluginCache creates an empty store, or one seeded from a prior build's
// cacheSnapshot() if seed.Enabled (spec.md section 8's cache round-trip
// property: a fresh Graph.Build with opts.Cache set to a previous snapshot
// must be able to reuse its entries).
func NewPluginCache(seed config.CacheOptions) *PluginCache {
	c := &PluginCache{stores: map[string]*lru.Cache[string, *config.CacheEntry]{}}
	if !seed.Enabled {
		return c
	}
	for pluginName, entries := range seed.Plugins {
		store := c.storeFor(pluginName)
		for key, entry := range entries {
			entry := entry
			store.Add(key, &entry)
		}
	}
	return c
}

func (c *PluginCache) storeFor(pluginName string) *lru.Cache[string, *config.CacheEntry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	store, ok := c.stores[pluginName]
	if !ok {
		store, _ = lru.New[string, *config.CacheEntry](defaultPluginStoreSize)
		c.stores[pluginName] = store
	}
	return store
}

// Get returns a plugin's cached value for key, bumping its access counter
// as spec.md section 6 requires ("all surviving entries have their
// counters incremented at load time").
func (c *PluginCache) Get(pluginName, key string) (interface{}, bool) {
	store := c.storeFor(pluginName)
	entry, ok := store.Get(key)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	entry.Counter++
	c.mu.Unlock()
	return entry.Value, true
}

// Set stores value under key for pluginName with a fresh (zero) counter.
func (c *PluginCache) Set(pluginName, key string, value interface{}) {
	store := c.storeFor(pluginName)
	store.Add(key, &config.CacheEntry{Value: value})
}

// Sweep evicts every entry across every plugin whose counter is at least
// expiry, per spec.md section 6. A non-positive expiry disables sweeping
// entirely (an expiry of zero would otherwise evict everything on the very
// first snapshot, including entries nothing has read yet).
func (c *PluginCache) Sweep(expiry int) {
	if expiry <= 0 {
		return
	}
	c.mu.Lock()
	stores := make(map[string]*lru.Cache[string, *config.CacheEntry], len(c.stores))
	for name, store := range c.stores {
		stores[name] = store
	}
	c.mu.Unlock()

	for _, store := range stores {
		for _, key := range store.Keys() {
			entry, ok := store.Peek(key)
			if ok && entry.Counter >= expiry {
				store.Remove(key)
			}
		}
	}
}

// Snapshot serialises every surviving entry into the shape
// config.CacheOptions.Plugins expects, for cacheSnapshot() to hand back to
// the caller.
func (c *PluginCache) Snapshot() map[string]map[string]config.CacheEntry {
	c.mu.Lock()
	stores := make(map[string]*lru.Cache[string, *config.CacheEntry], len(c.stores))
	for name, store := range c.stores {
		stores[name] = store
	}
	c.mu.Unlock()

	out := map[string]map[string]config.CacheEntry{}
	for name, store := range stores {
		if store.Len() == 0 {
			continue
		}
		entries := map[string]config.CacheEntry{}
		for _, key := range store.Keys() {
			if entry, ok := store.Peek(key); ok {
				entries[key] = *entry
			}
		}
		out[name] = entries
	}
	return out
}
