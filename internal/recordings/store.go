package recordings

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// Store persists recordings (VOD assets). Getters return (nil, nil) when no
// row exists.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	GetByProviderAssetID(ctx context.Context, providerAssetID string) (*models.Recording, error)
	GetByStreamID(ctx context.Context, streamID uuid.UUID) (*models.Recording, error)
	// Create inserts the pending recording for a stream. At most one
	// recording exists per stream; a conflicting insert returns the
	// existing row with created=false.
	Create(ctx context.Context, rec *models.Recording) (created bool, err error)
	// Update persists the fields written by the asset manager.
	Update(ctx context.Context, rec *models.Recording) error
	// SetMirror stores the S3 mirror location written by the worker.
	SetMirror(ctx context.Context, id uuid.UUID, mirrorURL, mirrorKey string) error
}
