package streams

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// Store persists streams. Getters return (nil, nil) when no row exists.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stream, error)
	GetByProviderStreamID(ctx context.Context, providerStreamID string) (*models.Stream, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Stream, error)
	Create(ctx context.Context, stream *models.Stream) error
	// Update persists the lifecycle fields written by the state machine.
	Update(ctx context.Context, stream *models.Stream) error
	// UpdateViewerCount stores the non-authoritative viewer hint without
	// touching lifecycle fields.
	UpdateViewerCount(ctx context.Context, id uuid.UUID, count int) error
}
