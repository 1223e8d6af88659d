package recordings

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

func recordingEvent(typ events.Type, at time.Time) events.Event {
	return events.Event{
		Provider:   models.ProviderStream,
		EventID:    "evt_" + string(typ),
		Type:       typ,
		OccurredAt: at,
		SubjectID:  "asset_1",
		StreamID:   "lp_stream_1",
	}
}

func pendingRecording() *models.Recording {
	return &models.Recording{
		ID:       uuid.New(),
		StreamID: uuid.New(),
		Status:   models.RecordingStatusPending,
	}
}

func TestRecordingTransitionUnknown(t *testing.T) {
	_, _, err := Transition(nil, recordingEvent(events.TypeRecordingReady, time.Now()))
	assert.ErrorIs(t, err, events.ErrUnknownSubject)
}

func TestRecordingTransitionReady(t *testing.T) {
	ev := recordingEvent(events.TypeRecordingReady, time.Now())
	ev.AssetURL = "https://vod.example/asset_1.mp4"
	ev.DurationSeconds = 3600

	next, outcome, err := Transition(pendingRecording(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.RecordingStatusReady, next.Status)
	assert.Equal(t, "asset_1", next.ProviderAssetID)
	assert.Equal(t, ev.AssetURL, next.AssetURL)
	assert.Equal(t, 3600, next.DurationSeconds)
}

func TestRecordingTransitionFailed(t *testing.T) {
	ev := recordingEvent(events.TypeRecordingFailed, time.Now())
	ev.Reason = "transcode error"

	next, outcome, err := Transition(pendingRecording(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.RecordingStatusFailed, next.Status)
	assert.Equal(t, "transcode error", next.FailureReason)
}

func TestRecordingTransitionTerminalStates(t *testing.T) {
	ready := recordingEvent(events.TypeRecordingReady, time.Now())
	ready.AssetURL = "https://vod.example/other.mp4"

	for _, status := range []string{
		models.RecordingStatusReady,
		models.RecordingStatusFailed,
		models.RecordingStatusDeleted,
	} {
		t.Run(status, func(t *testing.T) {
			cur := pendingRecording()
			cur.Status = status
			cur.AssetURL = "https://vod.example/original.mp4"

			next, outcome, err := Transition(cur, ready)
			require.NoError(t, err)
			assert.Equal(t, OutcomeStale, outcome)
			assert.Equal(t, status, next.Status)
			assert.Equal(t, "https://vod.example/original.mp4", next.AssetURL, "original URL retained")
		})
	}
}
