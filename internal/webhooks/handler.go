package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/ledger"
	"github.com/vistream/backend/internal/models"
)

// maxBodyBytes caps webhook request bodies. Provider payloads are small;
// anything larger is hostile.
const maxBodyBytes = 1 << 20

// Applier folds one canonical event into a domain record. A stale or
// out-of-order event returns nil (the applier logs the no-op);
// events.ErrUnknownSubject marks the event rejected.
type Applier interface {
	Apply(ctx context.Context, ev events.Event) error
}

// Handler is the webhook dispatcher: verify, reserve, normalize, apply,
// resolve.
type Handler struct {
	billingVerifier *Verifier
	videoVerifier   *Verifier
	guard           ledger.Store
	subscriptions   Applier
	streams         Applier
	recordings      Applier
	logger          *zap.Logger
}

// NewHandler creates the dispatcher.
func NewHandler(billingVerifier, videoVerifier *Verifier, guard ledger.Store, subscriptions, streams, recordings Applier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		billingVerifier: billingVerifier,
		videoVerifier:   videoVerifier,
		guard:           guard,
		subscriptions:   subscriptions,
		streams:         streams,
		recordings:      recordings,
		logger:          logger,
	}
}

// Billing handles POST /webhooks/billing.
func (h *Handler) Billing(c *gin.Context) {
	h.dispatch(c, h.billingVerifier, NormalizeBilling)
}

// Video handles POST /webhooks/stream and POST /webhooks/recording. Both
// routes share the provider's secret and delivery envelope.
func (h *Handler) Video(c *gin.Context) {
	h.dispatch(c, h.videoVerifier, NormalizeVideo)
}

// dispatch runs the ingestion pipeline over the raw request body. The
// response contract: 400 on signature or decode failure (no ledger row), 200
// on anything applied, already applied, intentionally ignored or rejected as
// unknown, 409 while a concurrent delivery of the same event is in flight,
// 500 on an internal failure (the pending row is left for the stale sweep so
// a redelivery can retry).
func (h *Handler) dispatch(c *gin.Context, verifier *Verifier, normalize func([]byte) (events.Event, error)) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
		h.logger.Warn("webhook signature rejected",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	ev, err := normalize(body)
	if err != nil {
		h.logger.Warn("webhook payload rejected",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	ctx := c.Request.Context()
	reservation, err := h.guard.Reserve(ctx, ev.Provider, ev.EventID)
	if err != nil {
		h.logger.Error("ledger reserve failed", zap.Error(err), zap.String("event_id", ev.EventID))
		c.Status(http.StatusInternalServerError)
		return
	}
	switch reservation {
	case ledger.AlreadyApplied:
		h.logger.Info("duplicate webhook acknowledged",
			zap.String("provider", ev.Provider), zap.String("event_id", ev.EventID))
		c.Status(http.StatusOK)
		return
	case ledger.InFlight:
		h.logger.Info("concurrent webhook delivery deferred",
			zap.String("provider", ev.Provider), zap.String("event_id", ev.EventID))
		c.Status(http.StatusConflict)
		return
	}

	if ev.Type == events.TypeUnsupported {
		h.resolve(ctx, ev, models.OutcomeApplied)
		h.logger.Info("unsupported webhook event acknowledged",
			zap.String("provider", ev.Provider), zap.String("event_id", ev.EventID))
		c.Status(http.StatusOK)
		return
	}

	err = h.applierFor(ev).Apply(ctx, ev)
	switch {
	case err == nil:
		h.resolve(ctx, ev, models.OutcomeApplied)
		c.Status(http.StatusOK)
	case errors.Is(err, events.ErrUnknownSubject):
		h.resolve(ctx, ev, models.OutcomeRejected)
		h.logger.Warn("webhook event for unknown entity rejected",
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.Type)))
		c.Status(http.StatusOK)
	default:
		// Pending row stays; the stale sweep frees it for redelivery.
		h.logger.Error("webhook event processing failed", zap.Error(err),
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.Type)))
		c.Status(http.StatusInternalServerError)
	}
}

func (h *Handler) applierFor(ev events.Event) Applier {
	switch ev.Type {
	case events.TypeSubscriptionActivated, events.TypeSubscriptionRenewed,
		events.TypeSubscriptionPastDue, events.TypeSubscriptionCanceled:
		return h.subscriptions
	case events.TypeRecordingReady, events.TypeRecordingFailed:
		return h.recordings
	default:
		return h.streams
	}
}

func (h *Handler) resolve(ctx context.Context, ev events.Event, outcome string) {
	if err := h.guard.Resolve(ctx, ev.Provider, ev.EventID, outcome); err != nil {
		h.logger.Error("ledger resolve failed", zap.Error(err),
			zap.String("event_id", ev.EventID), zap.String("outcome", outcome))
	}
}
