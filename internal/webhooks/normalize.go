package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

// billingEnvelope is the billing provider's delivery shape: a typed envelope
// wrapping the changed object.
type billingEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSession struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
	PaymentStatus     string `json:"payment_status"`
	Metadata          struct {
		PriceID string `json:"price_id"`
	} `json:"metadata"`
}

type invoice struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	PeriodEnd    int64  `json:"period_end"`
}

type providerSubscription struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	CanceledAt int64  `json:"canceled_at"`
}

// NormalizeBilling maps a billing provider delivery into a canonical event.
// Unrecognized event types come back as TypeUnsupported, never an error:
// they must be acknowledged, not retried forever.
func NormalizeBilling(body []byte) (events.Event, error) {
	var env billingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return events.Event{}, fmt.Errorf("decode billing event: %w", err)
	}
	if env.ID == "" {
		return events.Event{}, fmt.Errorf("billing event missing id")
	}

	ev := events.Event{
		Provider:   models.ProviderBilling,
		EventID:    env.ID,
		OccurredAt: time.Unix(env.Created, 0).UTC(),
		Type:       events.TypeUnsupported,
	}

	switch env.Type {
	case "checkout.session.completed":
		var sess checkoutSession
		if err := json.Unmarshal(env.Data.Object, &sess); err != nil {
			return events.Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		ev.Type = events.TypeSubscriptionActivated
		ev.SubjectID = sess.Subscription
		ev.CustomerID = sess.Customer
		ev.UserRef = sess.ClientReferenceID
		ev.PriceID = sess.Metadata.PriceID
		// Delayed payment methods complete the checkout before the charge
		// settles; the first paid invoice activates the subscription.
		ev.PaymentPending = sess.PaymentStatus == "unpaid"
	case "invoice.paid":
		var inv invoice
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return events.Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		ev.Type = events.TypeSubscriptionRenewed
		ev.SubjectID = inv.Subscription
		ev.CustomerID = inv.Customer
		ev.PeriodEnd = time.Unix(inv.PeriodEnd, 0).UTC()
	case "invoice.payment_failed":
		var inv invoice
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return events.Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		ev.Type = events.TypeSubscriptionPastDue
		ev.SubjectID = inv.Subscription
		ev.CustomerID = inv.Customer
	case "customer.subscription.deleted":
		var sub providerSubscription
		if err := json.Unmarshal(env.Data.Object, &sub); err != nil {
			return events.Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		ev.Type = events.TypeSubscriptionCanceled
		ev.SubjectID = sub.ID
		ev.CustomerID = sub.Customer
		if sub.CanceledAt > 0 {
			ev.OccurredAt = time.Unix(sub.CanceledAt, 0).UTC()
		}
	}
	return ev, nil
}

// videoEnvelope is the video provider's delivery shape. Timestamps are unix
// milliseconds.
type videoEnvelope struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
	Payload   struct {
		ID          string `json:"id"`
		StreamID    string `json:"streamId"`
		PlaybackURL string `json:"playbackUrl"`
		Record      bool   `json:"record"`
		ViewerCount int    `json:"viewerCount"`
		AssetURL    string `json:"assetUrl"`
		Duration    int    `json:"durationSeconds"`
		Reason      string `json:"reason"`
	} `json:"payload"`
}

// NormalizeVideo maps a video provider delivery (stream lifecycle or
// recording asset events) into a canonical event.
func NormalizeVideo(body []byte) (events.Event, error) {
	var env videoEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return events.Event{}, fmt.Errorf("decode video event: %w", err)
	}
	if env.ID == "" {
		return events.Event{}, fmt.Errorf("video event missing id")
	}

	ev := events.Event{
		Provider:   models.ProviderStream,
		EventID:    env.ID,
		OccurredAt: time.UnixMilli(env.Timestamp).UTC(),
		Type:       events.TypeUnsupported,
		SubjectID:  env.Payload.ID,
	}

	switch env.Event {
	case "stream.started":
		ev.Type = events.TypeStreamStarted
		ev.PlaybackURL = env.Payload.PlaybackURL
		ev.RecordingEnabled = env.Payload.Record
	case "stream.idle":
		ev.Type = events.TypeStreamEnded
	case "stream.error":
		ev.Type = events.TypeStreamErrored
		ev.Reason = env.Payload.Reason
	case "stream.viewer-count":
		ev.Type = events.TypeViewerCount
		ev.ViewerCount = env.Payload.ViewerCount
	case "recording.ready":
		ev.Type = events.TypeRecordingReady
		ev.StreamID = env.Payload.StreamID
		ev.AssetURL = env.Payload.AssetURL
		ev.DurationSeconds = env.Payload.Duration
	case "recording.failed":
		ev.Type = events.TypeRecordingFailed
		ev.StreamID = env.Payload.StreamID
		ev.Reason = env.Payload.Reason
	}
	return ev, nil
}
