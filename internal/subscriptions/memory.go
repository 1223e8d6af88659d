package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	subs  map[string]*models.Subscription // keyed by provider subscription id
	tiers map[uuid.UUID]models.Tier
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:  make(map[string]*models.Subscription),
		tiers: make(map[uuid.UUID]models.Tier),
	}
}

// GetByProviderSubscriptionID returns a copy of the subscription, or (nil, nil).
func (s *MemoryStore) GetByProviderSubscriptionID(_ context.Context, providerSubID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[providerSubID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

// GetByUserID returns the user's subscription, or (nil, nil).
func (s *MemoryStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

// Upsert inserts or replaces the subscription keyed by provider id.
func (s *MemoryStore) Upsert(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[sub.ProviderSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = uuid.New()
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	cp := *sub
	s.subs[sub.ProviderSubscriptionID] = &cp
	return nil
}

// SetUserTier records the user's effective tier.
func (s *MemoryStore) SetUserTier(_ context.Context, userID uuid.UUID, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userID] = tier
	return nil
}

// UserTier returns the recorded tier for a user (tests).
func (s *MemoryStore) UserTier(userID uuid.UUID) models.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tiers[userID]; ok {
		return t
	}
	return models.TierFree
}

var _ Store = (*MemoryStore)(nil)
