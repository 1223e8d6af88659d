package recordings

import (
	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

// Outcome classifies the result of folding one asset event into a recording.
type Outcome int

const (
	// OutcomeApplied: the event changed recording state.
	OutcomeApplied Outcome = iota
	// OutcomeStale: the recording is already terminal; no change.
	OutcomeStale
)

// Transition folds an authoritative recording event into cur and returns the
// next state. Recording rows are created when the stream ends, never by a
// webhook, so cur == nil is events.ErrUnknownSubject.
//
// Rules: ready, failed and deleted are terminal; only a pending recording
// moves. A ready event stores the provider asset id, asset URL and duration;
// a failed event stores the failure reason.
func Transition(cur *models.Recording, ev events.Event) (models.Recording, Outcome, error) {
	if cur == nil {
		return models.Recording{}, OutcomeStale, events.ErrUnknownSubject
	}

	next := *cur
	if cur.Status != models.RecordingStatusPending {
		return next, OutcomeStale, nil
	}

	switch ev.Type {
	case events.TypeRecordingReady:
		next.Status = models.RecordingStatusReady
		next.ProviderAssetID = ev.SubjectID
		next.AssetURL = ev.AssetURL
		next.DurationSeconds = ev.DurationSeconds
	case events.TypeRecordingFailed:
		next.Status = models.RecordingStatusFailed
		next.ProviderAssetID = ev.SubjectID
		next.FailureReason = ev.Reason
	default:
		return next, OutcomeStale, nil
	}

	next.LastEventID = ev.EventID
	return next, OutcomeApplied, nil
}
