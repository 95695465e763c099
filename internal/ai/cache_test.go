package ai

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RefinementCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "refinements.json")
	return NewRefinementCache(NewFileCacheStore(path))
}

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"lowercase and trim", "  iPhone 15 Pro ", "iphone 15 pro"},
		{"punctuation stripped", "Sony WH-1000XM5!", "sony wh1000xm5"},
		{"whitespace collapsed", "macbook   air    m2", "macbook air m2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeQuery(tt.query))
		})
	}
}

func TestRefinementCacheExactMatch(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)

	_, ok := cache.Get("iphone 15 pro")
	assert.False(t, ok)

	require.NoError(t, cache.Put("iphone 15 pro", "apple iphone 15 pro unlocked"))

	refined, ok := cache.Get("iphone 15 pro")
	require.True(t, ok)
	assert.Equal(t, "apple iphone 15 pro unlocked", refined)

	// Normalization maps variant spellings onto the same key.
	refined, ok = cache.Get("  iPhone 15 PRO!")
	require.True(t, ok)
	assert.Equal(t, "apple iphone 15 pro unlocked", refined)
}

func TestRefinementCacheFuzzyMatch(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	require.NoError(t, cache.Put("iphone 15 pro", "apple iphone 15 pro unlocked"))

	// Cached key is a substring of the longer query.
	refined, ok := cache.Get("iphone 15 pro 128gb")
	require.True(t, ok)
	assert.Equal(t, "apple iphone 15 pro unlocked", refined)

	// Below the minimum overlap nothing matches.
	require.NoError(t, cache.Put("ps5", "sony playstation 5 console"))
	_, ok = cache.Get("ps5 slim")
	assert.False(t, ok)
}

func TestRefinementCacheStoresEmptyResults(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	require.NoError(t, cache.Put("macbook air m2 256gb", ""))

	refined, ok := cache.Get("macbook air m2 256gb")
	require.True(t, ok, "a cached dead end is still a hit")
	assert.Empty(t, refined)
}

func TestFileCacheStorePersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "refinements.json")
	store := NewFileCacheStore(path)

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Save(map[string]string{"a b c": "x"}))

	reloaded, err := NewFileCacheStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a b c": "x"}, reloaded)
}
