package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/sidpendyala/marketmaker/internal/metrics"
)

// CacheStore persists the refinement cache between runs.
type CacheStore interface {
	Load() (map[string]string, error)
	Save(entries map[string]string) error
}

// FileCacheStore keeps the cache as a single JSON file.
type FileCacheStore struct {
	path string
}

// NewFileCacheStore creates a store writing to path. Parent directories
// are created on first save.
func NewFileCacheStore(path string) *FileCacheStore {
	return &FileCacheStore{path: path}
}

// Load implements CacheStore. A missing file is an empty cache.
func (s *FileCacheStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

// Save implements CacheStore.
func (s *FileCacheStore) Save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// minFuzzyOverlap is the minimum key overlap, in characters, for a
// fuzzy cache hit. Shorter overlaps match too many unrelated products.
const minFuzzyOverlap = 6

// RefinementCache memoizes query refinements so repeat scans of similar
// queries skip the model call. It is a performance layer only; scans
// are correct without it.
type RefinementCache struct {
	store CacheStore
	mu    sync.Mutex
}

// NewRefinementCache wraps a store.
func NewRefinementCache(store CacheStore) *RefinementCache {
	return &RefinementCache{store: store}
}

var (
	nonAlnumSpaceRe = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpaceRe    = regexp.MustCompile(`\s+`)
)

// normalizeQuery canonicalizes a query for cache keys.
func normalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = nonAlnumSpaceRe.ReplaceAllString(q, "")
	return multiSpaceRe.ReplaceAllString(q, " ")
}

// Get looks up a cached refinement: exact key first, then the longest
// substring overlap in either direction, requiring at least
// minFuzzyOverlap characters. The second return reports a hit; a hit
// may carry "" meaning "refinement known to not help".
func (c *RefinementCache) Get(query string) (string, bool) {
	normalized := normalizeQuery(query)

	c.mu.Lock()
	entries, err := c.store.Load()
	c.mu.Unlock()
	if err != nil {
		metrics.AICacheHitsTotal.WithLabelValues("error").Inc()
		return "", false
	}

	if refined, ok := entries[normalized]; ok {
		metrics.AICacheHitsTotal.WithLabelValues("exact").Inc()
		return refined, true
	}

	best := ""
	bestLen := 0
	found := false
	for key, refined := range entries {
		switch {
		case strings.Contains(normalized, key) && len(key) > bestLen:
			best, bestLen, found = refined, len(key), true
		case strings.Contains(key, normalized) && len(normalized) > bestLen:
			best, bestLen, found = refined, len(normalized), true
		}
	}
	if found && bestLen >= minFuzzyOverlap {
		metrics.AICacheHitsTotal.WithLabelValues("fuzzy").Inc()
		return best, true
	}

	metrics.AICacheHitsTotal.WithLabelValues("miss").Inc()
	return "", false
}

// Put stores a refinement result, including empty results so known
// dead ends are not retried.
func (c *RefinementCache) Put(query, refined string) error {
	normalized := normalizeQuery(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.store.Load()
	if err != nil {
		return err
	}
	entries[normalized] = refined
	return c.store.Save(entries)
}
