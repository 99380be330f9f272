package parser

import (
	"sync"
	"time"

	"github.com/centavobot/centavo/internal/dupe"
	"github.com/centavobot/centavo/internal/model"
)

const (
	// SimilarityThreshold is the minimum token-set similarity for a
	// cache hit.
	SimilarityThreshold = 0.82

	// cacheTTL keeps resolved free-form messages around long enough to
	// absorb repeated phrasing without growing stale.
	cacheTTL = 7 * 24 * time.Hour

	// maxEntriesPerUser bounds per-user memory; oldest entries are
	// evicted first.
	maxEntriesPerUser = 200

	cacheSweepInterval = time.Hour
)

type cacheEntry struct {
	expiry time.Time
	tokens map[string]struct{}
	text   string
	intent model.Intent
}

// SemanticCache stores previously resolved free-form messages keyed by
// approximate textual similarity, per user. Reads happen on the message
// path; writes happen only after a successful model parse.
type SemanticCache struct {
	entries map[string][]cacheEntry
	stopCh  chan struct{}
	now     func() time.Time
	mu      sync.RWMutex
}

// NewSemanticCache creates a cache and starts its background sweep.
func NewSemanticCache() *SemanticCache {
	return newSemanticCache(cacheSweepInterval, time.Now)
}

func newSemanticCache(sweepInterval time.Duration, now func() time.Time) *SemanticCache {
	c := &SemanticCache{
		entries: make(map[string][]cacheEntry),
		stopCh:  make(chan struct{}),
		now:     now,
	}

	go c.sweepLoop(sweepInterval)

	return c
}

// Lookup returns the cached intent most similar to text for the user,
// with its similarity score. Hits below the threshold, expired entries
// and cached unknowns all count as misses.
func (c *SemanticCache) Lookup(userID, text string) (model.Intent, float64, bool) {
	tokens := tokenSet(text)
	if len(tokens) == 0 {
		return model.Intent{}, 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	bestScore := 0.0
	var best model.Intent
	found := false

	for _, entry := range c.entries[userID] {
		if now.After(entry.expiry) || entry.intent.Action == model.ActionUnknown {
			continue
		}
		score := jaccard(tokens, entry.tokens)
		if score >= SimilarityThreshold && score > bestScore {
			bestScore = score
			best = entry.intent
			found = true
		}
	}

	return best, bestScore, found
}

// Store records a resolved free-form message for the user. Unknown
// intents are never cached.
func (c *SemanticCache) Store(userID, text string, intent model.Intent) {
	if intent.Action == model.ActionUnknown {
		return
	}
	tokens := tokenSet(text)
	if len(tokens) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.entries[userID]
	entries = append(entries, cacheEntry{
		text:   text,
		tokens: tokens,
		intent: intent,
		expiry: c.now().Add(cacheTTL),
	})
	if len(entries) > maxEntriesPerUser {
		entries = entries[len(entries)-maxEntriesPerUser:]
	}
	c.entries[userID] = entries
}

// Sweep drops expired entries and empty user lists.
func (c *SemanticCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for userID, entries := range c.entries {
		kept := entries[:0]
		for _, entry := range entries {
			if !now.After(entry.expiry) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(c.entries, userID)
		} else {
			c.entries[userID] = kept
		}
	}
}

func (c *SemanticCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the sweep goroutine.
func (c *SemanticCache) Close() {
	close(c.stopCh)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range dupe.Tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for token := range a {
		if _, ok := b[token]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}
