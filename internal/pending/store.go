// Package pending implements the per-user pending-state store backing
// multi-turn conversation flows.
package pending

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/centavobot/centavo/internal/model"
)

// DefaultTTL applies to pending records created without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// defaultSweepInterval bounds how long an abandoned record can outlive
// its TTL in memory.
const defaultSweepInterval = time.Minute

// Store holds live pending records keyed by user and kind. A user has at
// most one record per kind; creating another replaces the existing one.
// All methods are safe for concurrent use.
type Store struct {
	records map[string]map[model.PendingKind]model.PendingRecord
	stopCh  chan struct{}
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a store and starts its background sweep.
func NewStore() *Store {
	return newStore(defaultSweepInterval, time.Now)
}

func newStore(sweepInterval time.Duration, now func() time.Time) *Store {
	s := &Store{
		records: make(map[string]map[model.PendingKind]model.PendingRecord),
		stopCh:  make(chan struct{}),
		now:     now,
	}

	go s.sweepLoop(sweepInterval)

	return s
}

// Put creates a pending record for the user, replacing any live record of
// the same kind. A zero ttl falls back to DefaultTTL. The record ID is
// returned so responses can embed it for reply-context resolution.
func (s *Store) Put(userID string, kind model.PendingKind, payload any, ttl time.Duration) model.PendingRecord {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	record := model.PendingRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: s.now(),
		TTL:       ttl,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKind := s.records[userID]
	if byKind == nil {
		byKind = make(map[model.PendingKind]model.PendingRecord)
		s.records[userID] = byKind
	}
	byKind[kind] = record

	return record
}

// Get returns the user's live record of the given kind. An expired record
// is treated as absent; the sweep removes it from storage.
func (s *Store) Get(userID string, kind model.PendingKind) (model.PendingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID][kind]
	if !ok || record.Expired(s.now()) {
		return model.PendingRecord{}, false
	}
	return record, true
}

// Claim atomically reads and deletes the user's live record of the given
// kind. Exactly one concurrent caller can claim a record.
func (s *Store) Claim(userID string, kind model.PendingKind) (model.PendingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID][kind]
	if !ok {
		return model.PendingRecord{}, false
	}

	delete(s.records[userID], kind)
	if len(s.records[userID]) == 0 {
		delete(s.records, userID)
	}

	if record.Expired(s.now()) {
		return model.PendingRecord{}, false
	}
	return record, true
}

// ClaimByID claims the user's record of the given kind only when its ID
// matches, so a reply scoped to one record cannot consume another.
func (s *Store) ClaimByID(userID string, kind model.PendingKind, id string) (model.PendingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID][kind]
	if !ok || record.ID != id || record.Expired(s.now()) {
		return model.PendingRecord{}, false
	}

	delete(s.records[userID], kind)
	if len(s.records[userID]) == 0 {
		delete(s.records, userID)
	}
	return record, true
}

// Restore puts a claimed record back. The router uses this when a claimed
// record's effect could not complete, so the flow is not half-consumed.
func (s *Store) Restore(record model.PendingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind := s.records[record.UserID]
	if byKind == nil {
		byKind = make(map[model.PendingKind]model.PendingRecord)
		s.records[record.UserID] = byKind
	}
	byKind[record.Kind] = record
}

// Delete discards the user's record of the given kind, if any.
func (s *Store) Delete(userID string, kind model.PendingKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[userID], kind)
	if len(s.records[userID]) == 0 {
		delete(s.records, userID)
	}
}

// Live returns the kinds with a live record for the user, used by tests
// and the router's diagnostics.
func (s *Store) Live(userID string) []model.PendingKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	kinds := make([]model.PendingKind, 0, len(s.records[userID]))
	for kind, record := range s.records[userID] {
		if !record.Expired(now) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Sweep removes every expired record, deleting empty per-user maps so
// abandoned conversations do not grow memory without bound.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, byKind := range s.records {
		for kind, record := range byKind {
			if record.Expired(now) {
				delete(byKind, kind)
			}
		}
		if len(byKind) == 0 {
			delete(s.records, userID)
		}
	}
}

func (s *Store) sweepLoop(interval time.Duration) {
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
func (s *Store) Close() {
	close(s.stopCh)
}
