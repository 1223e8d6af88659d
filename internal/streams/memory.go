package streams

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[uuid.UUID]*models.Stream
}

// NewMemoryStore creates an empty in-memory stream store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[uuid.UUID]*models.Stream)}
}

// GetByID returns a copy of the stream, or (nil, nil).
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// GetByProviderStreamID returns a copy of the stream, or (nil, nil).
func (s *MemoryStore) GetByProviderStreamID(_ context.Context, providerStreamID string) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streams {
		if st.ProviderStreamID == providerStreamID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

// ListByCreator returns the creator's streams.
func (s *MemoryStore) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Stream
	for _, st := range s.streams {
		if st.CreatorID == creatorID {
			list = append(list, *st)
		}
	}
	return list, nil
}

// Create inserts a stream, assigning an id.
func (s *MemoryStore) Create(_ context.Context, stream *models.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream.ID = uuid.New()
	stream.CreatedAt = time.Now()
	stream.UpdatedAt = stream.CreatedAt
	cp := *stream
	s.streams[stream.ID] = &cp
	return nil
}

// Update replaces lifecycle fields.
func (s *MemoryStore) Update(_ context.Context, stream *models.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[stream.ID]
	if !ok {
		return nil
	}
	st.Status = stream.Status
	st.PlaybackURL = stream.PlaybackURL
	st.StartedAt = stream.StartedAt
	st.EndedAt = stream.EndedAt
	st.LastEventID = stream.LastEventID
	st.LastEventAt = stream.LastEventAt
	st.UpdatedAt = time.Now()
	return nil
}

// UpdateViewerCount stores the viewer hint.
func (s *MemoryStore) UpdateViewerCount(_ context.Context, id uuid.UUID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[id]; ok {
		st.ViewerCount = count
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
