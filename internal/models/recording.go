package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordingStatus values. ready, failed and deleted are terminal.
const (
	RecordingStatusPending = "pending"
	RecordingStatusReady   = "ready"
	RecordingStatusFailed  = "failed"
	RecordingStatusDeleted = "deleted"
)

// Recording is a VOD asset produced by a completed stream with recording
// enabled. Exactly one recording exists per such stream.
type Recording struct {
	ID              uuid.UUID  `json:"id"`
	StreamID        uuid.UUID  `json:"stream_id"`
	ProviderAssetID string     `json:"provider_asset_id,omitempty"`
	Status          string     `json:"status"`
	AssetURL        string     `json:"asset_url,omitempty"`
	MirrorURL       string     `json:"mirror_url,omitempty"`
	MirrorKey       string     `json:"-"`
	DurationSeconds int        `json:"duration_seconds"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	LastEventID     string     `json:"last_event_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
