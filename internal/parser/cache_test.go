package parser

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/model"
)

func TestSemanticCache(t *testing.T) {
	intent := model.Intent{
		Action:     model.ActionAddExpense,
		Confidence: 0.9,
		Entities:   map[string]any{"amount": 50.0, "category": "comida"},
	}

	t.Run("miss on empty cache", func(t *testing.T) {
		cache := NewSemanticCache()
		defer cache.Close()

		_, _, ok := cache.Lookup("user-1", "gastei 50 em comida")
		assert.False(t, ok)
	})

	t.Run("hit on similar phrasing", func(t *testing.T) {
		cache := NewSemanticCache()
		defer cache.Close()

		cache.Store("user-1", "gastei 50 em comida", intent)

		got, similarity, ok := cache.Lookup("user-1", "gastei 50 em comida!")
		require.True(t, ok)
		assert.Equal(t, intent.Action, got.Action)
		assert.GreaterOrEqual(t, similarity, SimilarityThreshold)
	})

	t.Run("miss below threshold", func(t *testing.T) {
		cache := NewSemanticCache()
		defer cache.Close()

		cache.Store("user-1", "gastei 50 em comida", intent)

		_, _, ok := cache.Lookup("user-1", "quanto sobrou do orçamento deste mês")
		assert.False(t, ok)
	})

	t.Run("cache is per user", func(t *testing.T) {
		cache := NewSemanticCache()
		defer cache.Close()

		cache.Store("user-1", "gastei 50 em comida", intent)

		_, _, ok := cache.Lookup("user-2", "gastei 50 em comida")
		assert.False(t, ok)
	})

	t.Run("unknown intents are never cached", func(t *testing.T) {
		cache := NewSemanticCache()
		defer cache.Close()

		cache.Store("user-1", "hmm sei lá", model.Intent{Action: model.ActionUnknown})

		_, _, ok := cache.Lookup("user-1", "hmm sei lá")
		assert.False(t, ok)
	})

	t.Run("entries expire and sweep removes them", func(t *testing.T) {
		var mu sync.Mutex
		current := time.Now()
		now := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		cache := newSemanticCache(time.Hour, now)
		defer cache.Close()

		cache.Store("user-1", "gastei 50 em comida", intent)

		mu.Lock()
		current = current.Add(cacheTTL + time.Minute)
		mu.Unlock()

		_, _, ok := cache.Lookup("user-1", "gastei 50 em comida")
		assert.False(t, ok)

		cache.Sweep()
		cache.mu.RLock()
		_, exists := cache.entries["user-1"]
		cache.mu.RUnlock()
		assert.False(t, exists)
	})
}

func TestDailyQuota(t *testing.T) {
	t.Run("acquire until exhausted", func(t *testing.T) {
		quota := NewDailyQuota(2)

		assert.True(t, quota.TryAcquire("user-1"))
		assert.True(t, quota.TryAcquire("user-1"))
		assert.False(t, quota.TryAcquire("user-1"))
		assert.Equal(t, 0, quota.Remaining("user-1"))

		// Other users are unaffected.
		assert.True(t, quota.TryAcquire("user-2"))
	})

	t.Run("release returns a call", func(t *testing.T) {
		quota := NewDailyQuota(1)

		require.True(t, quota.TryAcquire("user-1"))
		require.False(t, quota.TryAcquire("user-1"))

		quota.Release("user-1")
		assert.True(t, quota.TryAcquire("user-1"))
	})

	t.Run("resets at midnight UTC", func(t *testing.T) {
		quota := NewDailyQuota(1)
		current := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
		quota.now = func() time.Time { return current }

		require.True(t, quota.TryAcquire("user-1"))
		require.False(t, quota.TryAcquire("user-1"))

		current = time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
		assert.True(t, quota.TryAcquire("user-1"))
	})

	t.Run("concurrent acquires never exceed limit", func(t *testing.T) {
		const limit = 10
		quota := NewDailyQuota(limit)

		var wg sync.WaitGroup
		granted := make(chan struct{}, limit*3)
		for i := 0; i < limit*3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if quota.TryAcquire("user-1") {
					granted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(granted)

		count := 0
		for range granted {
			count++
		}
		assert.Equal(t, limit, count)
	})
}
