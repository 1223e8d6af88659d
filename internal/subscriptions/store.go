package subscriptions

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistream/backend/internal/models"
)

// Store persists subscriptions and the user-tier side effect. Getters return
// (nil, nil) when no row exists.
type Store interface {
	GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	// Upsert inserts the subscription on first activation and updates it on
	// later events, keyed by provider_subscription_id.
	Upsert(ctx context.Context, sub *models.Subscription) error
	// SetUserTier updates the user's effective membership tier, read by
	// client-facing authorization checks.
	SetUserTier(ctx context.Context, userID uuid.UUID, tier models.Tier) error
}
