package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

func TestCache_SetGet(t *testing.T) {
	cache := NewCache(DefaultCacheConfig())
	value := []collectable.Collectable{{Title: "Dune", Tags: []string{"x"}}}

	cache.Set("k", value)
	value[0].Tags[0] = "mutated"

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, got[0].Tags)

	got[0].Title = "changed"
	again, _ := cache.Get("k")
	assert.Equal(t, "Dune", again[0].Title)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(CacheConfig{TTL: time.Minute, MaxItems: 10})
	cache.now = func() time.Time { return now }

	cache.Set("k", []collectable.Collectable{{Title: "Dune"}})
	_, ok := cache.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("k")
	assert.False(t, ok)

	assert.Equal(t, 1, cache.Prune())
	assert.Equal(t, 0, cache.Len())
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(CacheConfig{TTL: time.Hour, MaxItems: 3})
	cache.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		cache.Set(key, nil)
		now = now.Add(time.Second)
	}
	cache.Set("d", nil)

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = cache.Get("d")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(CacheConfig{})
	cache.Set("k", nil)
	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("books", ModeFallback, []string{"p1"}, 0, collectable.SearchCriteria{
		Title:       "  DUNE ",
		Identifiers: map[string]string{"isbn": "1", "asin": "2"},
	})
	b := cacheKey("books", ModeFallback, []string{"p1"}, 0, collectable.SearchCriteria{
		Title:       "dune",
		Identifiers: map[string]string{"asin": "2", "isbn": "1"},
	})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, cacheKey("books", ModeMerge, []string{"p1"}, 0, collectable.SearchCriteria{Title: "dune", Identifiers: map[string]string{"asin": "2", "isbn": "1"}}))
	assert.NotEqual(t,
		cacheKey("books", ModeFallback, []string{"p1"}, 5, collectable.SearchCriteria{Title: "dune"}),
		cacheKey("books", ModeFallback, []string{"p1"}, 5, collectable.SearchCriteria{Title: "dune", Year: 1965}))
	assert.NotEqual(t,
		cacheKey("books", ModeFallback, []string{"p1", "p2"}, 0, collectable.SearchCriteria{Title: "dune"}),
		cacheKey("books", ModeFallback, []string{"p2"}, 0, collectable.SearchCriteria{Title: "dune"}))
}
