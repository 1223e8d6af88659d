package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamStatus values. idle -> active -> ended, with active -> error -> ended
// as the failure branch. ended is terminal; ended_at is set exactly once.
const (
	StreamStatusIdle   = "idle"
	StreamStatusActive = "active"
	StreamStatusEnded  = "ended"
	StreamStatusError  = "error"
)

// Stream is a live stream provisioned on the video provider and synchronized
// from its lifecycle webhooks. Ended streams are archived, not deleted.
type Stream struct {
	ID               uuid.UUID  `json:"id"`
	CreatorID        uuid.UUID  `json:"creator_id"`
	ProviderStreamID string     `json:"provider_stream_id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	StreamKey        string     `json:"-"`
	RTMPIngestURL    string     `json:"rtmp_ingest_url,omitempty"`
	PlaybackURL      string     `json:"playback_url,omitempty"`
	ViewerCount      int        `json:"viewer_count"`
	RecordingEnabled bool       `json:"recording_enabled"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	LastEventID      string     `json:"last_event_id,omitempty"`
	LastEventAt      time.Time  `json:"last_event_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
