package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vistream/backend/internal/models"
)

// PostgresStore is the durable ledger backed by the webhook_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed ledger store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Reserve atomically claims (provider, eventID). The INSERT ... ON CONFLICT
// DO NOTHING decides the winner; losers read the existing row's outcome.
func (s *PostgresStore) Reserve(ctx context.Context, provider, eventID string) (Reservation, error) {
	const ins = `INSERT INTO webhook_events (provider, event_id, outcome, received_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, event_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, ins, provider, eventID, models.OutcomePending)
	if err != nil {
		return InFlight, fmt.Errorf("reserve insert: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return Proceed, nil
	}

	const sel = `SELECT outcome FROM webhook_events WHERE provider = $1 AND event_id = $2`
	var outcome string
	if err := s.pool.QueryRow(ctx, sel, provider, eventID).Scan(&outcome); err != nil {
		return InFlight, fmt.Errorf("reserve readback: %w", err)
	}
	if outcome == models.OutcomePending {
		return InFlight, nil
	}
	return AlreadyApplied, nil
}

// Resolve flips a pending row to its terminal outcome.
func (s *PostgresStore) Resolve(ctx context.Context, provider, eventID, outcome string) error {
	const q = `UPDATE webhook_events SET outcome = $1, resolved_at = NOW()
		WHERE provider = $2 AND event_id = $3 AND outcome = $4`
	_, err := s.pool.Exec(ctx, q, outcome, provider, eventID, models.OutcomePending)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}

// SweepStale deletes pending rows older than the bound so redelivery can
// re-reserve them after a crash between reserve and resolve.
func (s *PostgresStore) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	const q = `DELETE FROM webhook_events WHERE outcome = $1 AND received_at < NOW() - $2::interval`
	tag, err := s.pool.Exec(ctx, q, models.OutcomePending, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("sweep stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PruneBefore deletes resolved rows received before t.
func (s *PostgresStore) PruneBefore(ctx context.Context, t time.Time) (int, error) {
	const q = `DELETE FROM webhook_events WHERE outcome <> $1 AND received_at < $2`
	tag, err := s.pool.Exec(ctx, q, models.OutcomePending, t)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
