package webhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/ledger"
	"github.com/vistream/backend/internal/locks"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/internal/recordings"
	"github.com/vistream/backend/internal/streams"
	"github.com/vistream/backend/internal/subscriptions"
	"github.com/vistream/backend/pkg/queue"
)

const (
	billingSecret = "whsec_billing"
	videoSecret   = "whsec_video"
)

// createOnEnqueue simulates the worker picking up the creation job
// immediately, so pipeline tests cover the stream-ended hand-off.
type createOnEnqueue struct {
	recService *recordings.Service
}

func (e *createOnEnqueue) EnqueueRecordingCreate(ctx context.Context, p queue.RecordingCreatePayload) error {
	_, err := e.recService.CreateForStream(ctx, p.StreamID)
	return err
}

type dropMirrors struct{}

func (dropMirrors) EnqueueRecordingMirror(context.Context, queue.RecordingMirrorPayload) error {
	return nil
}

type dispatchFixture struct {
	router   *gin.Engine
	guard    *ledger.MemoryStore
	subStore *subscriptions.MemoryStore
	strStore *streams.MemoryStore
	recStore *recordings.MemoryStore
	recSvc   *recordings.Service
	now      time.Time
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &dispatchFixture{
		guard:    ledger.NewMemoryStore(),
		subStore: subscriptions.NewMemoryStore(),
		strStore: streams.NewMemoryStore(),
		recStore: recordings.NewMemoryStore(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	lc := locks.NewMemoryCoordinator()

	machine := subscriptions.Machine{MemberPriceID: "price_member", PremiumPriceID: "price_premium"}
	subSvc := subscriptions.NewService(f.subStore, lc, machine, nil)
	f.recSvc = recordings.NewService(f.recStore, f.strStore, lc, dropMirrors{}, nil, nil, nil)
	strSvc := streams.NewService(f.strStore, lc, &createOnEnqueue{recService: f.recSvc}, nil)

	billingVerifier := NewVerifier(billingSecret, 5*time.Minute)
	billingVerifier.SetClock(func() time.Time { return f.now })
	videoVerifier := NewVerifier(videoSecret, 5*time.Minute)
	videoVerifier.SetClock(func() time.Time { return f.now })

	h := NewHandler(billingVerifier, videoVerifier, f.guard, subSvc, strSvc, f.recSvc, nil)

	f.router = gin.New()
	f.router.POST("/webhooks/billing", h.Billing)
	f.router.POST("/webhooks/stream", h.Video)
	f.router.POST("/webhooks/recording", h.Video)
	return f
}

func (f *dispatchFixture) deliver(t *testing.T, path, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(secret, f.now, body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *dispatchFixture) seedStream(t *testing.T, recording bool) *models.Stream {
	t.Helper()
	stream := &models.Stream{
		ProviderStreamID: "lp_stream_1",
		Status:           models.StreamStatusIdle,
		RecordingEnabled: recording,
	}
	require.NoError(t, f.strStore.Create(context.Background(), stream))
	return stream
}

func TestDispatchBillingActivation(t *testing.T) {
	f := newDispatchFixture(t)
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1767225600,
		"data": {"object": {
			"customer": "cus_1",
			"subscription": "sub_1",
			"client_reference_id": "4a6e1f8a-0000-0000-0000-000000000001",
			"metadata": {"price_id": "price_member"}
		}}
	}`)

	w := f.deliver(t, "/webhooks/billing", billingSecret, body)
	assert.Equal(t, http.StatusOK, w.Code)

	sub, err := f.subStore.GetByProviderSubscriptionID(context.Background(), "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	row := f.guard.Get(models.ProviderBilling, "evt_1")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomeApplied, row.Outcome)
}

func TestDispatchDuplicateDelivery(t *testing.T) {
	f := newDispatchFixture(t)
	f.seedStream(t, false)
	body := []byte(`{"id": "evt_s1", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`)

	first := f.deliver(t, "/webhooks/stream", videoSecret, body)
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.deliver(t, "/webhooks/stream", videoSecret, body)
	assert.Equal(t, http.StatusOK, second.Code, "replay is acknowledged without reprocessing")
	assert.Equal(t, 1, f.guard.Len())
}

func TestDispatchInFlightDelivery(t *testing.T) {
	f := newDispatchFixture(t)
	f.seedStream(t, false)
	body := []byte(`{"id": "evt_s1", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`)

	// A concurrent delivery of the same event still holds the reservation.
	_, err := f.guard.Reserve(context.Background(), models.ProviderStream, "evt_s1")
	require.NoError(t, err)

	w := f.deliver(t, "/webhooks/stream", videoSecret, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDispatchTamperedBody(t *testing.T) {
	f := newDispatchFixture(t)
	body := []byte(`{"id": "evt_s1", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stream", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(videoSecret, f.now, []byte(`{"id":"evt_other"}`)))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.guard.Len(), "rejected deliveries never touch the ledger")
}

func TestDispatchOutOfOrderStreamEvents(t *testing.T) {
	f := newDispatchFixture(t)
	stream := f.seedStream(t, false)
	ctx := context.Background()

	ended := []byte(`{"id": "evt_end", "event": "stream.idle", "timestamp": 1767229200000, "payload": {"id": "lp_stream_1"}}`)
	w := f.deliver(t, "/webhooks/stream", videoSecret, ended)
	require.Equal(t, http.StatusOK, w.Code)

	// The delayed "started" event arrives after the stream already closed.
	started := []byte(`{"id": "evt_start", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`)
	w = f.deliver(t, "/webhooks/stream", videoSecret, started)
	assert.Equal(t, http.StatusOK, w.Code, "stale events are absorbed, not retried")

	got, err := f.strStore.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StreamStatusEnded, got.Status)

	row := f.guard.Get(models.ProviderStream, "evt_start")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomeApplied, row.Outcome)
}

func TestDispatchUnknownStreamRejected(t *testing.T) {
	f := newDispatchFixture(t)
	body := []byte(`{"id": "evt_s1", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_missing"}}`)

	w := f.deliver(t, "/webhooks/stream", videoSecret, body)
	assert.Equal(t, http.StatusOK, w.Code, "unknown entities are acknowledged so the provider stops retrying")

	row := f.guard.Get(models.ProviderStream, "evt_s1")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomeRejected, row.Outcome)
}

func TestDispatchUnsupportedEventAcknowledged(t *testing.T) {
	f := newDispatchFixture(t)
	body := []byte(`{"id": "evt_u1", "event": "asset.created", "timestamp": 1767225600000, "payload": {"id": "whatever"}}`)

	w := f.deliver(t, "/webhooks/recording", videoSecret, body)
	assert.Equal(t, http.StatusOK, w.Code)

	row := f.guard.Get(models.ProviderStream, "evt_u1")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomeApplied, row.Outcome)
}

func TestDispatchRecordingPipeline(t *testing.T) {
	f := newDispatchFixture(t)
	stream := f.seedStream(t, true)
	ctx := context.Background()

	ended := []byte(`{"id": "evt_end", "event": "stream.idle", "timestamp": 1767229200000, "payload": {"id": "lp_stream_1"}}`)
	w := f.deliver(t, "/webhooks/stream", videoSecret, ended)
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := f.recStore.GetByStreamID(ctx, stream.ID)
	require.NoError(t, err)
	require.NotNil(t, rec, "ending a recording-enabled stream creates the pending recording")
	assert.Equal(t, models.RecordingStatusPending, rec.Status)

	ready := []byte(`{"id": "evt_ready", "event": "recording.ready", "timestamp": 1767229300000, "payload": {"id": "asset_1", "streamId": "lp_stream_1", "assetUrl": "https://vod.example/a.mp4", "durationSeconds": 3600}}`)
	w = f.deliver(t, "/webhooks/recording", videoSecret, ready)
	require.Equal(t, http.StatusOK, w.Code)

	rec, err = f.recStore.GetByStreamID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusReady, rec.Status)
	assert.Equal(t, "https://vod.example/a.mp4", rec.AssetURL)

	// Replay with a different URL: duplicate event id, acknowledged, no change.
	w = f.deliver(t, "/webhooks/recording", videoSecret, ready)
	require.Equal(t, http.StatusOK, w.Code)
	rec, err = f.recStore.GetByStreamID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://vod.example/a.mp4", rec.AssetURL)
}

type failingApplier struct{}

func (failingApplier) Apply(context.Context, events.Event) error {
	return errors.New("storage unavailable")
}

func TestDispatchInternalErrorLeavesPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := ledger.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier := NewVerifier(videoSecret, 5*time.Minute)
	verifier.SetClock(func() time.Time { return now })

	h := NewHandler(verifier, verifier, guard, failingApplier{}, failingApplier{}, failingApplier{}, nil)
	router := gin.New()
	router.POST("/webhooks/stream", h.Video)

	body := []byte(`{"id": "evt_s1", "event": "stream.started", "timestamp": 1767225600000, "payload": {"id": "lp_stream_1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stream", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(videoSecret, now, body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	row := guard.Get(models.ProviderStream, "evt_s1")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomePending, row.Outcome, "left for the stale sweep so redelivery can retry")
}
