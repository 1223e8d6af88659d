package recordings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*models.Recording
	byStream map[uuid.UUID]uuid.UUID
	byAsset  map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*models.Recording),
		byStream: make(map[uuid.UUID]uuid.UUID),
		byAsset:  make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) GetByProviderAssetID(_ context.Context, providerAssetID string) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byAsset[providerAssetID]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryStore) GetByStreamID(_ context.Context, streamID uuid.UUID) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byStream[streamID]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryStore) Create(_ context.Context, rec *models.Recording) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byStream[rec.StreamID]; ok {
		*rec = *m.byID[id]
		return false, nil
	}
	rec.ID = uuid.New()
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	m.byID[rec.ID] = &cp
	m.byStream[rec.StreamID] = rec.ID
	return true, nil
}

func (m *MemoryStore) Update(_ context.Context, rec *models.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[rec.ID]
	if !ok {
		return nil
	}
	if prev.ProviderAssetID != "" && prev.ProviderAssetID != rec.ProviderAssetID {
		delete(m.byAsset, prev.ProviderAssetID)
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.byID[rec.ID] = &cp
	if rec.ProviderAssetID != "" {
		m.byAsset[rec.ProviderAssetID] = rec.ID
	}
	return nil
}

func (m *MemoryStore) SetMirror(_ context.Context, id uuid.UUID, mirrorURL, mirrorKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil
	}
	rec.MirrorURL = mirrorURL
	rec.MirrorKey = mirrorKey
	rec.UpdatedAt = time.Now()
	return nil
}

var _ Store = (*MemoryStore)(nil)
