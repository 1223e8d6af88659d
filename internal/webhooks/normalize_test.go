package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

func TestNormalizeBillingCheckoutCompleted(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1767225600,
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"client_reference_id": "4a6e1f8a-0000-0000-0000-000000000001",
			"metadata": {"price_id": "price_premium"}
		}}
	}`)

	ev, err := NormalizeBilling(body)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderBilling, ev.Provider)
	assert.Equal(t, "evt_1", ev.EventID)
	assert.Equal(t, events.TypeSubscriptionActivated, ev.Type)
	assert.Equal(t, "sub_1", ev.SubjectID)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "4a6e1f8a-0000-0000-0000-000000000001", ev.UserRef)
	assert.Equal(t, "price_premium", ev.PriceID)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), ev.OccurredAt)
	assert.False(t, ev.PaymentPending)
}

func TestNormalizeBillingCheckoutUnpaid(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1767225600,
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"payment_status": "unpaid",
			"metadata": {"price_id": "price_member"}
		}}
	}`)

	ev, err := NormalizeBilling(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeSubscriptionActivated, ev.Type)
	assert.True(t, ev.PaymentPending)
}

func TestNormalizeBillingInvoiceEvents(t *testing.T) {
	tests := []struct {
		eventType string
		want      events.Type
	}{
		{"invoice.paid", events.TypeSubscriptionRenewed},
		{"invoice.payment_failed", events.TypeSubscriptionPastDue},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			body := []byte(`{
				"id": "evt_2",
				"type": "` + tt.eventType + `",
				"created": 1767225600,
				"data": {"object": {"customer": "cus_1", "subscription": "sub_1", "period_end": 1769904000}}
			}`)
			ev, err := NormalizeBilling(body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type)
			assert.Equal(t, "sub_1", ev.SubjectID)
		})
	}
}

func TestNormalizeBillingSubscriptionDeleted(t *testing.T) {
	body := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"created": 1767225600,
		"data": {"object": {"id": "sub_1", "customer": "cus_1", "canceled_at": 1767225700}}
	}`)
	ev, err := NormalizeBilling(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeSubscriptionCanceled, ev.Type)
	assert.Equal(t, "sub_1", ev.SubjectID)
	assert.Equal(t, time.Unix(1767225700, 0).UTC(), ev.OccurredAt)
}

func TestNormalizeBillingUnknownType(t *testing.T) {
	body := []byte(`{"id": "evt_4", "type": "charge.refunded", "created": 1767225600, "data": {"object": {}}}`)
	ev, err := NormalizeBilling(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeUnsupported, ev.Type)
	assert.False(t, ev.Authoritative())
}

func TestNormalizeBillingRejectsGarbage(t *testing.T) {
	_, err := NormalizeBilling([]byte(`not json`))
	assert.Error(t, err)
	_, err = NormalizeBilling([]byte(`{"type": "invoice.paid"}`))
	assert.Error(t, err, "missing event id")
}

func TestNormalizeVideoStreamEvents(t *testing.T) {
	body := []byte(`{
		"id": "evt_s1",
		"event": "stream.started",
		"timestamp": 1767225600000,
		"payload": {"id": "lp_stream_1", "playbackUrl": "https://cdn.example/hls.m3u8", "record": true}
	}`)
	ev, err := NormalizeVideo(body)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderStream, ev.Provider)
	assert.Equal(t, events.TypeStreamStarted, ev.Type)
	assert.Equal(t, "lp_stream_1", ev.SubjectID)
	assert.Equal(t, "https://cdn.example/hls.m3u8", ev.PlaybackURL)
	assert.True(t, ev.RecordingEnabled)
	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), ev.OccurredAt)

	tests := []struct {
		event string
		want  events.Type
	}{
		{"stream.idle", events.TypeStreamEnded},
		{"stream.error", events.TypeStreamErrored},
		{"stream.viewer-count", events.TypeViewerCount},
		{"asset.created", events.TypeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			ev, err := NormalizeVideo([]byte(`{"id": "evt_x", "event": "` + tt.event + `", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type)
		})
	}
}

func TestNormalizeVideoRecordingReady(t *testing.T) {
	body := []byte(`{
		"id": "evt_r1",
		"event": "recording.ready",
		"timestamp": 1767225600000,
		"payload": {
			"id": "asset_1",
			"streamId": "lp_stream_1",
			"assetUrl": "https://vod.example/asset_1.mp4",
			"durationSeconds": 5400
		}
	}`)
	ev, err := NormalizeVideo(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeRecordingReady, ev.Type)
	assert.Equal(t, "asset_1", ev.SubjectID)
	assert.Equal(t, "lp_stream_1", ev.StreamID)
	assert.Equal(t, "https://vod.example/asset_1.mp4", ev.AssetURL)
	assert.Equal(t, 5400, ev.DurationSeconds)
}

func TestNormalizeVideoRecordingFailed(t *testing.T) {
	body := []byte(`{
		"id": "evt_r2",
		"event": "recording.failed",
		"timestamp": 1767225600000,
		"payload": {"id": "asset_1", "streamId": "lp_stream_1", "reason": "transcode error"}
	}`)
	ev, err := NormalizeVideo(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeRecordingFailed, ev.Type)
	assert.Equal(t, "transcode error", ev.Reason)
}
