package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vistream/backend/internal/models"
)

const subscriptionColumns = `id, user_id, provider_subscription_id, COALESCE(provider_customer_id,''),
	tier, status, current_period_end, canceled_at, COALESCE(last_event_id,''), last_event_at, created_at, updated_at`

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a subscriptions store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.ProviderSubscriptionID, &s.ProviderCustomerID,
		&s.Tier, &s.Status, &s.CurrentPeriodEnd, &s.CanceledAt, &s.LastEventID, &s.LastEventAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetByProviderSubscriptionID returns a subscription by provider id, or (nil, nil).
func (r *PostgresStore) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`
	return scanSubscription(r.pool.QueryRow(ctx, q, providerSubID))
}

// GetByUserID returns the user's latest subscription, or (nil, nil).
func (r *PostgresStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanSubscription(r.pool.QueryRow(ctx, q, userID))
}

// Upsert inserts or updates the subscription keyed by provider_subscription_id.
func (r *PostgresStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	const q = `INSERT INTO subscriptions
		(id, user_id, provider_subscription_id, provider_customer_id, tier, status, current_period_end, canceled_at, last_event_id, last_event_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider_subscription_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			canceled_at = EXCLUDED.canceled_at,
			last_event_id = EXCLUDED.last_event_id,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, sub.UserID, sub.ProviderSubscriptionID, sub.ProviderCustomerID,
		sub.Tier, sub.Status, sub.CurrentPeriodEnd, sub.CanceledAt, sub.LastEventID, sub.LastEventAt).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

// SetUserTier updates the user's effective membership tier.
func (r *PostgresStore) SetUserTier(ctx context.Context, userID uuid.UUID, tier models.Tier) error {
	const q = `UPDATE users SET tier = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, tier, userID)
	return err
}

var _ Store = (*PostgresStore)(nil)
