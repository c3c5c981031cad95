package catalog

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

// Cache is an in-memory TTL cache of positive lookup results.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

type cacheItem struct {
	value     []collectable.Collectable
	expiresAt time.Time
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	TTL      time.Duration
	MaxItems int
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      15 * time.Minute,
		MaxItems: 1000,
	}
}

// NewCache creates a new cache with the given configuration.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 1000
	}
	return &Cache{
		items:    make(map[string]cacheItem),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		now:      time.Now,
	}
}

// Get returns deep copies of the cached results so callers can tag them freely.
func (c *Cache) Get(key string) ([]collectable.Collectable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	return cloneAll(item.value), true
}

// Set stores results under key.
func (c *Cache) Set(key string, value []collectable.Collectable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict oldest items if at capacity
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = cacheItem{
		value:     cloneAll(value),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
}

// Len returns the number of items in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Prune removes expired items. The scheduler calls it periodically.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// evictOldest drops expired items, then the oldest 10% if still full.
// Must be called with the lock held.
func (c *Cache) evictOldest() {
	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.items[keys[i]].expiresAt.Before(c.items[keys[j]].expiresAt)
	})

	toRemove := max(c.maxItems/10, 1)
	for _, key := range keys[:min(toRemove, len(keys))] {
		delete(c.items, key)
	}
}

// cacheKey identifies a lookup by container, mode, the providers that would
// be consulted, limit and criteria. A provider leaving the route set changes
// the key, so its cached answers stop being served.
func cacheKey(container string, mode Mode, providers []string, limit int, criteria collectable.SearchCriteria) string {
	var b strings.Builder
	b.WriteString(container)
	b.WriteByte('|')
	b.WriteString(strings.Join(providers, ","))
	b.WriteByte('|')
	b.WriteString(string(mode))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(limit))
	b.WriteByte('|')
	b.WriteString(collectable.NormalizeText(criteria.Title))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(criteria.Year))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(criteria.Format))

	keys := make([]string, 0, len(criteria.Identifiers))
	for k := range criteria.Identifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(criteria.Identifiers[k])
	}
	return b.String()
}

func cloneAll(in []collectable.Collectable) []collectable.Collectable {
	out := make([]collectable.Collectable, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
