package parser

import (
	"sync"
	"time"
)

// DefaultDailyQuota is the number of model calls a user gets per UTC day
// when no explicit quota is configured.
const DefaultDailyQuota = 20

// DailyQuota enforces a per-user daily budget of external-model calls.
// Counters reset at midnight UTC. Acquisition is atomic so concurrent
// messages from one user cannot slip past the limit.
type DailyQuota struct {
	usage map[string]*dailyUsage
	now   func() time.Time
	limit int
	mu    sync.Mutex
}

type dailyUsage struct {
	resetAt time.Time
	calls   int
}

// NewDailyQuota returns a quota allowing at most limit model calls per
// user per UTC day. A non-positive limit falls back to DefaultDailyQuota.
func NewDailyQuota(limit int) *DailyQuota {
	if limit <= 0 {
		limit = DefaultDailyQuota
	}
	return &DailyQuota{
		usage: make(map[string]*dailyUsage),
		limit: limit,
		now:   time.Now,
	}
}

// TryAcquire atomically consumes one call from the user's daily budget,
// returning false when the budget is already exhausted.
func (q *DailyQuota) TryAcquire(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	u := q.usage[userID]
	if u == nil || !now.Before(u.resetAt) {
		u = &dailyUsage{resetAt: nextMidnightUTC(now)}
		q.usage[userID] = u
	}

	if u.calls >= q.limit {
		return false
	}
	u.calls++
	return true
}

// Release returns one call to the user's budget, used when an acquired
// call never reached the model.
func (q *DailyQuota) Release(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if u := q.usage[userID]; u != nil && u.calls > 0 {
		u.calls--
	}
}

// Remaining returns how many model calls the user may still make today.
func (q *DailyQuota) Remaining(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	u := q.usage[userID]
	if u == nil || !now.Before(u.resetAt) {
		return q.limit
	}
	if u.calls >= q.limit {
		return 0
	}
	return q.limit - u.calls
}

func nextMidnightUTC(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
