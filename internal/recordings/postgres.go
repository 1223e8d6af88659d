package recordings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vistream/backend/internal/models"
)

const recordingColumns = `id, stream_id, COALESCE(provider_asset_id,''), status,
	COALESCE(asset_url,''), COALESCE(mirror_url,''), COALESCE(mirror_key,''),
	duration_seconds, COALESCE(failure_reason,''), deleted_at, COALESCE(last_event_id,''), created_at, updated_at`

// PostgresStore persists recordings in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a recordings store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.StreamID, &rec.ProviderAssetID, &rec.Status,
		&rec.AssetURL, &rec.MirrorURL, &rec.MirrorKey,
		&rec.DurationSeconds, &rec.FailureReason, &rec.DeletedAt, &rec.LastEventID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetByID returns a recording by ID, or (nil, nil).
func (r *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, id))
}

// GetByProviderAssetID returns a recording by provider asset id, or (nil, nil).
func (r *PostgresStore) GetByProviderAssetID(ctx context.Context, providerAssetID string) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE provider_asset_id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, providerAssetID))
}

// GetByStreamID returns the stream's recording, or (nil, nil).
func (r *PostgresStore) GetByStreamID(ctx context.Context, streamID uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE stream_id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, streamID))
}

// Create inserts the pending recording. The unique stream_id constraint makes
// repeat creation a no-op returning the existing row.
func (r *PostgresStore) Create(ctx context.Context, rec *models.Recording) (bool, error) {
	const ins = `INSERT INTO recordings (id, stream_id, status)
		VALUES (gen_random_uuid(), $1, $2)
		ON CONFLICT (stream_id) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, ins, rec.StreamID, rec.Status).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if err != pgx.ErrNoRows {
		return false, err
	}
	existing, err := r.GetByStreamID(ctx, rec.StreamID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*rec = *existing
	}
	return false, nil
}

// Update persists asset-manager fields.
func (r *PostgresStore) Update(ctx context.Context, rec *models.Recording) error {
	const q = `UPDATE recordings SET provider_asset_id = NULLIF($1,''), status = $2, asset_url = $3,
		duration_seconds = $4, failure_reason = $5, deleted_at = $6, last_event_id = $7, updated_at = NOW()
		WHERE id = $8`
	_, err := r.pool.Exec(ctx, q, rec.ProviderAssetID, rec.Status, rec.AssetURL,
		rec.DurationSeconds, rec.FailureReason, rec.DeletedAt, rec.LastEventID, rec.ID)
	return err
}

// SetMirror stores the S3 mirror location.
func (r *PostgresStore) SetMirror(ctx context.Context, id uuid.UUID, mirrorURL, mirrorKey string) error {
	const q = `UPDATE recordings SET mirror_url = $1, mirror_key = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, mirrorURL, mirrorKey, id)
	return err
}

var _ Store = (*PostgresStore)(nil)
