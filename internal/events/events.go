// Package events defines the canonical, provider-agnostic representation of
// inbound webhook notifications. Provider payloads are normalized into this
// closed set before any state machine sees them.
package events

import "time"

// Type enumerates the canonical event kinds. The set is closed: anything a
// provider sends that does not map here becomes TypeUnsupported explicitly,
// never by falling through a default branch.
type Type string

const (
	TypeSubscriptionActivated Type = "subscription.activated"
	TypeSubscriptionRenewed   Type = "subscription.renewed"
	TypeSubscriptionPastDue   Type = "subscription.past_due"
	TypeSubscriptionCanceled  Type = "subscription.canceled"

	TypeStreamStarted Type = "stream.started"
	TypeStreamEnded   Type = "stream.ended"
	TypeStreamErrored Type = "stream.errored"

	TypeRecordingReady  Type = "recording.ready"
	TypeRecordingFailed Type = "recording.failed"

	// TypeViewerCount is a non-authoritative hint; it never participates in
	// lifecycle transitions.
	TypeViewerCount Type = "stream.viewer_count"

	TypeUnsupported Type = "unsupported"
)

// Event is a normalized webhook notification. Provider and EventID come from
// the delivery envelope; OccurredAt is the provider-assigned event time used
// for ordering, not the receipt time.
type Event struct {
	Provider   string
	EventID    string
	Type       Type
	OccurredAt time.Time

	// SubjectID identifies the provider-side entity the event concerns:
	// subscription id for billing events, stream id for lifecycle events,
	// asset id for recording events.
	SubjectID string

	// Billing fields. UserRef is the app user id echoed back by the provider
	// (set as the checkout client reference when the session is created).
	CustomerID string
	UserRef    string
	PriceID    string
	PeriodEnd  time.Time

	// PaymentPending marks a completed checkout whose first charge has not
	// settled yet; the subscription starts incomplete until an invoice pays.
	PaymentPending bool

	// Stream fields.
	PlaybackURL      string
	RecordingEnabled bool
	ViewerCount      int

	// Recording fields.
	StreamID        string
	AssetURL        string
	DurationSeconds int
	Reason          string
}

// Authoritative reports whether the event participates in lifecycle state
// transitions (viewer-count hints and unsupported events do not).
func (e Event) Authoritative() bool {
	return e.Type != TypeViewerCount && e.Type != TypeUnsupported
}
