// Package undo implements the per-user bounded stack of reversible-action
// snapshots.
package undo

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/centavobot/centavo/internal/model"
)

const (
	// MaxDepth caps how many actions a user can reverse; the oldest
	// record is dropped silently beyond it.
	MaxDepth = 3
	// TTL is how long a record stays reversible.
	TTL = 5 * time.Minute

	defaultSweepInterval = time.Minute
)

// Stack holds undo records per user, most recent first. All methods are
// safe for concurrent use.
type Stack struct {
	records map[string][]model.UndoRecord
	stopCh  chan struct{}
	now     func() time.Time
	mu      sync.Mutex
}

// NewStack creates a stack and starts its background sweep.
func NewStack() *Stack {
	return newStack(defaultSweepInterval, time.Now)
}

func newStack(sweepInterval time.Duration, now func() time.Time) *Stack {
	s := &Stack{
		records: make(map[string][]model.UndoRecord),
		stopCh:  make(chan struct{}),
		now:     now,
	}

	go s.sweepLoop(sweepInterval)

	return s
}

// Record pushes a snapshot of a just-completed reversible mutation.
func (s *Stack) Record(userID string, action model.UndoActionKind, entryID string, prior json.RawMessage) {
	record := model.UndoRecord{
		UserID:    userID,
		Action:    action,
		EntryID:   entryID,
		Prior:     prior,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stack := append([]model.UndoRecord{record}, s.records[userID]...)
	if len(stack) > MaxDepth {
		stack = stack[:MaxDepth]
	}
	s.records[userID] = stack
}

// Pop removes and returns the user's most recent unexpired record. The
// record is consumed whether or not the compensating write later succeeds.
func (s *Stack) Pop(userID string) (model.UndoRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack := s.records[userID]
	now := s.now()
	for len(stack) > 0 {
		record := stack[0]
		stack = stack[1:]
		if now.Sub(record.CreatedAt) <= TTL {
			s.setLocked(userID, stack)
			return record, true
		}
	}

	s.setLocked(userID, stack)
	return model.UndoRecord{}, false
}

// Depth returns the number of unexpired records for the user.
func (s *Stack) Depth(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, record := range s.records[userID] {
		if now.Sub(record.CreatedAt) <= TTL {
			count++
		}
	}
	return count
}

// Sweep drops expired records, removing the user's list once empty.
func (s *Stack) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, stack := range s.records {
		kept := stack[:0]
		for _, record := range stack {
			if now.Sub(record.CreatedAt) <= TTL {
				kept = append(kept, record)
			}
		}
		s.setLocked(userID, kept)
	}
}

func (s *Stack) setLocked(userID string, stack []model.UndoRecord) {
	if len(stack) == 0 {
		delete(s.records, userID)
		return
	}
	s.records[userID] = stack
}

func (s *Stack) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the sweep goroutine.
func (s *Stack) Close() {
	close(s.stopCh)
}
