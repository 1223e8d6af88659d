package streams

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vistream/backend/internal/models"
)

const streamColumns = `id, creator_id, provider_stream_id, title, status,
	COALESCE(stream_key,''), COALESCE(rtmp_ingest_url,''), COALESCE(playback_url,''),
	viewer_count, recording_enabled, started_at, ended_at, COALESCE(last_event_id,''), last_event_at,
	created_at, updated_at`

// PostgresStore persists streams in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a streams store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanStream(row pgx.Row) (*models.Stream, error) {
	var s models.Stream
	err := row.Scan(&s.ID, &s.CreatorID, &s.ProviderStreamID, &s.Title, &s.Status,
		&s.StreamKey, &s.RTMPIngestURL, &s.PlaybackURL,
		&s.ViewerCount, &s.RecordingEnabled, &s.StartedAt, &s.EndedAt, &s.LastEventID, &s.LastEventAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetByID returns a stream by ID, or (nil, nil).
func (r *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Stream, error) {
	const q = `SELECT ` + streamColumns + ` FROM streams WHERE id = $1`
	return scanStream(r.pool.QueryRow(ctx, q, id))
}

// GetByProviderStreamID returns a stream by provider id, or (nil, nil).
func (r *PostgresStore) GetByProviderStreamID(ctx context.Context, providerStreamID string) (*models.Stream, error) {
	const q = `SELECT ` + streamColumns + ` FROM streams WHERE provider_stream_id = $1`
	return scanStream(r.pool.QueryRow(ctx, q, providerStreamID))
}

// ListByCreator returns the creator's streams, newest first.
func (r *PostgresStore) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Stream, error) {
	const q = `SELECT ` + streamColumns + ` FROM streams WHERE creator_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Create inserts a newly provisioned stream.
func (r *PostgresStore) Create(ctx context.Context, stream *models.Stream) error {
	const q = `INSERT INTO streams
		(id, creator_id, provider_stream_id, title, status, stream_key, rtmp_ingest_url, playback_url, recording_enabled)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, stream.CreatorID, stream.ProviderStreamID, stream.Title, stream.Status,
		stream.StreamKey, stream.RTMPIngestURL, stream.PlaybackURL, stream.RecordingEnabled).
		Scan(&stream.ID, &stream.CreatedAt, &stream.UpdatedAt)
}

// Update persists lifecycle fields written by the state machine.
func (r *PostgresStore) Update(ctx context.Context, stream *models.Stream) error {
	const q = `UPDATE streams SET status = $1, playback_url = $2, started_at = $3, ended_at = $4,
		last_event_id = $5, last_event_at = $6, updated_at = NOW() WHERE id = $7`
	_, err := r.pool.Exec(ctx, q, stream.Status, stream.PlaybackURL, stream.StartedAt, stream.EndedAt,
		stream.LastEventID, stream.LastEventAt, stream.ID)
	return err
}

// UpdateViewerCount stores the viewer hint only.
func (r *PostgresStore) UpdateViewerCount(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE streams SET viewer_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, count, id)
	return err
}

var _ Store = (*PostgresStore)(nil)
