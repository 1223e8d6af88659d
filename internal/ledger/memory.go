package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/vistream/backend/internal/models"
)

// MemoryStore is an in-process ledger for tests and single-node development.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*models.WebhookEvent
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*models.WebhookEvent), now: time.Now}
}

// SetClock overrides the clock (tests).
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func key(provider, eventID string) string { return provider + "\x00" + eventID }

// Reserve claims (provider, eventID) under the store mutex.
func (s *MemoryStore) Reserve(_ context.Context, provider, eventID string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[key(provider, eventID)]; ok {
		if row.Outcome == models.OutcomePending {
			return InFlight, nil
		}
		return AlreadyApplied, nil
	}
	s.rows[key(provider, eventID)] = &models.WebhookEvent{
		Provider:   provider,
		EventID:    eventID,
		Outcome:    models.OutcomePending,
		ReceivedAt: s.now(),
	}
	return Proceed, nil
}

// Resolve flips a pending row to its terminal outcome.
func (s *MemoryStore) Resolve(_ context.Context, provider, eventID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key(provider, eventID)]
	if !ok || row.Outcome != models.OutcomePending {
		return nil
	}
	t := s.now()
	row.Outcome = outcome
	row.ResolvedAt = &t
	return nil
}

// SweepStale removes pending rows older than the bound.
func (s *MemoryStore) SweepStale(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	n := 0
	for k, row := range s.rows {
		if row.Outcome == models.OutcomePending && row.ReceivedAt.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

// PruneBefore deletes resolved rows received before t.
func (s *MemoryStore) PruneBefore(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, row := range s.rows {
		if row.Outcome != models.OutcomePending && row.ReceivedAt.Before(t) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the row for (provider, eventID), or nil (tests).
func (s *MemoryStore) Get(provider, eventID string) *models.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key(provider, eventID)]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

// Len returns the number of ledger rows (tests).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
