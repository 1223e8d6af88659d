package streams

import (
	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

// Outcome classifies the result of folding one lifecycle event into a stream.
type Outcome int

const (
	// OutcomeApplied: the event changed stream state.
	OutcomeApplied Outcome = iota
	// OutcomeStale: the event is out-of-order or post-terminal; no change.
	OutcomeStale
)

// Transition folds an authoritative lifecycle event into cur and returns the
// next state. Streams are created by the provisioning call, never by a
// webhook, so cur == nil is events.ErrUnknownSubject.
//
// Rules: ended is terminal; only an ended event may leave the error status;
// events older than the stored last event are stale no-ops (a delayed
// "started" after "ended" is discarded); ended_at is set exactly once.
func Transition(cur *models.Stream, ev events.Event) (models.Stream, Outcome, error) {
	if cur == nil {
		return models.Stream{}, OutcomeStale, events.ErrUnknownSubject
	}

	next := *cur
	if cur.Status == models.StreamStatusEnded {
		return next, OutcomeStale, nil
	}
	if ev.OccurredAt.Before(cur.LastEventAt) {
		return next, OutcomeStale, nil
	}

	switch ev.Type {
	case events.TypeStreamStarted:
		if cur.Status == models.StreamStatusError {
			return next, OutcomeStale, nil
		}
		next.Status = models.StreamStatusActive
		if next.StartedAt == nil {
			t := ev.OccurredAt
			next.StartedAt = &t
		}
		if ev.PlaybackURL != "" {
			next.PlaybackURL = ev.PlaybackURL
		}
	case events.TypeStreamErrored:
		next.Status = models.StreamStatusError
	case events.TypeStreamEnded:
		next.Status = models.StreamStatusEnded
		if next.EndedAt == nil {
			t := ev.OccurredAt
			next.EndedAt = &t
		}
	default:
		return next, OutcomeStale, nil
	}

	next.LastEventID = ev.EventID
	next.LastEventAt = ev.OccurredAt
	return next, OutcomeApplied, nil
}
