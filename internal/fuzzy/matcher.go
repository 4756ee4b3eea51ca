// Package fuzzy bridges vocabulary mismatch between free-form category
// labels and a catalog's canonical keys (e.g. "kitten" vs "cats") using
// embedding similarity. A matcher is built once per distinct vocabulary
// set and caches query results, since the same mismatched term recurs
// across conversations.
package fuzzy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"renterchat/internal/embedding"
	"renterchat/internal/logging"
)

// DefaultThreshold is the minimum similarity score for a match.
const DefaultThreshold = 0.6

// Result is a cached match outcome.
type Result struct {
	Key   string  // Matched vocabulary key, empty when below threshold
	Score float64 // Best similarity found, reported even on miss
}

// Stats describes matcher state for diagnostics.
type Stats struct {
	Enabled      bool    `json:"enabled"`
	Threshold    float64 `json:"threshold"`
	IndexedTerms int     `json:"indexed_terms"`
	CacheSize    int     `json:"cache_size"`
}

// Matcher finds the best semantic match for a query within a fixed
// vocabulary. Safe for concurrent use.
type Matcher struct {
	engine    embedding.Engine
	threshold float64
	enabled   bool

	mu      sync.RWMutex
	vocab   []string
	vectors [][]float32
	cache   map[string]Result

	group singleflight.Group
}

// NewMatcher creates a matcher over the given engine. A nil engine yields
// a disabled matcher whose Match always reports no match; callers fall
// back to the exact-match failure path.
func NewMatcher(engine embedding.Engine, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	m := &Matcher{
		engine:    engine,
		threshold: threshold,
		enabled:   engine != nil,
		cache:     make(map[string]Result),
	}
	if !m.enabled {
		logging.Match("Fuzzy matcher disabled: no embedding engine available")
	}
	return m
}

// BuildIndex embeds the vocabulary. Called once per snapshot load with all
// category keys observed across communities. On embedding failure the
// matcher degrades to exact-only matching until the next BuildIndex
// succeeds; a failed index never blocks the caller's reload.
func (m *Matcher) BuildIndex(ctx context.Context, vocab []string) error {
	if m.engine == nil {
		return nil
	}
	if len(vocab) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}

	logging.Match("Building vocabulary index for %d terms", len(vocab))

	vectors, err := m.engine.EmbedBatch(ctx, vocab)
	if err != nil {
		logging.Get(logging.CategoryMatch).Error("Failed to build vocabulary index: %v (semantic matching degraded)", err)
		m.mu.Lock()
		m.vocab = nil
		m.vectors = nil
		m.cache = make(map[string]Result)
		m.mu.Unlock()
		return fmt.Errorf("failed to embed vocabulary: %w", err)
	}

	m.mu.Lock()
	m.vocab = append([]string(nil), vocab...)
	m.vectors = vectors
	m.cache = make(map[string]Result)
	m.mu.Unlock()

	logging.Match("Vocabulary index built with %d terms", len(vocab))
	return nil
}

// Enabled reports whether semantic matching is operational.
func (m *Matcher) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled && len(m.vectors) > 0
}

// Match returns the best-scoring vocabulary key for query when the score
// meets the threshold, otherwise an empty key together with the best score
// found so callers can report it.
func (m *Matcher) Match(ctx context.Context, query string) (string, float64, error) {
	if !m.Enabled() {
		return "", 0.0, nil
	}

	key := normalize(query)
	if key == "" {
		return "", 0.0, nil
	}

	m.mu.RLock()
	if cached, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		logging.MatchDebug("Cache hit: %q -> %q (%.3f)", query, cached.Key, cached.Score)
		return cached.Key, cached.Score, nil
	}
	m.mu.RUnlock()

	// Concurrent lookups of the same normalized term share one embedding call.
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.lookup(ctx, key)
	})
	if err != nil {
		return "", 0.0, err
	}

	res := v.(Result)
	return res.Key, res.Score, nil
}

func (m *Matcher) lookup(ctx context.Context, key string) (Result, error) {
	queryVec, err := m.engine.Embed(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed query %q: %w", key, err)
	}

	m.mu.RLock()
	vocab := m.vocab
	vectors := m.vectors
	m.mu.RUnlock()

	bestIdx := -1
	bestScore := -1.0
	for i, vec := range vectors {
		score, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Result{}, fmt.Errorf("no comparable vocabulary vectors")
	}
	if bestScore < 0 {
		bestScore = 0
	}

	res := Result{Score: bestScore}
	if bestScore >= m.threshold {
		res.Key = vocab[bestIdx]
	}

	m.mu.Lock()
	m.cache[key] = res
	m.mu.Unlock()

	logging.Match("Match: %q -> %q (confidence %.3f, threshold %.2f)", key, res.Key, res.Score, m.threshold)
	return res, nil
}

// ClearCache drops all cached query results.
func (m *Matcher) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]Result)
	m.mu.Unlock()
}

// Stats returns matcher diagnostics.
func (m *Matcher) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Enabled:      m.enabled && len(m.vectors) > 0,
		Threshold:    m.threshold,
		IndexedTerms: len(m.vocab),
		CacheSize:    len(m.cache),
	}
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
