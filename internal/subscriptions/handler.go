package subscriptions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/billing"
	"github.com/vistream/backend/internal/middleware"
	"github.com/vistream/backend/pkg/response"
)

// Handler exposes the callable billing operations: thin forwards to the
// provider. The subscription record itself is only ever written by the
// webhook path.
type Handler struct {
	store   Store
	billing billing.Client
	logger  *zap.Logger
}

// NewHandler creates the billing callable handler.
func NewHandler(store Store, client billing.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, billing: client, logger: logger}
}

// CheckoutRequest is the body for POST /billing/checkout-session.
type CheckoutRequest struct {
	PriceID string `json:"price_id" binding:"required"`
}

// CreateCheckoutSession handles POST /billing/checkout-session.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), userID.String(), req.PriceID)
	if err != nil {
		h.respondProviderError(c, "create checkout session", err)
		return
	}
	response.OK(c, gin.H{"checkout_url": url})
}

// CreatePortalSession handles POST /billing/portal-session.
func (h *Handler) CreatePortalSession(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	sub, err := h.store.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load subscription failed", zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub == nil || sub.ProviderCustomerID == "" {
		response.NotFound(c, "no subscription on file")
		return
	}

	url, err := h.billing.CreatePortalSession(c.Request.Context(), sub.ProviderCustomerID)
	if err != nil {
		h.respondProviderError(c, "create portal session", err)
		return
	}
	response.OK(c, gin.H{"portal_url": url})
}

// CancelSubscription handles DELETE /billing/subscriptions/:id. The
// durable status change arrives later via the cancellation webhook.
func (h *Handler) CancelSubscription(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	providerSubID := c.Param("id")

	sub, err := h.store.GetByProviderSubscriptionID(c.Request.Context(), providerSubID)
	if err != nil {
		h.logger.Error("load subscription failed", zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub == nil {
		response.NotFound(c, "subscription not found")
		return
	}
	if sub.UserID != userID {
		response.Forbidden(c, "not your subscription")
		return
	}

	status, err := h.billing.CancelSubscription(c.Request.Context(), providerSubID)
	if err != nil {
		h.respondProviderError(c, "cancel subscription", err)
		return
	}
	response.OK(c, gin.H{"status": status})
}

// GetMySubscription handles GET /billing/subscription.
func (h *Handler) GetMySubscription(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	sub, err := h.store.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load subscription failed", zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub == nil {
		response.NotFound(c, "no subscription on file")
		return
	}
	response.OK(c, sub)
}

func (h *Handler) respondProviderError(c *gin.Context, op string, err error) {
	var provErr *billing.ProviderError
	if errors.As(err, &provErr) {
		h.logger.Warn(op+" provider error", zap.Int("status", provErr.StatusCode), zap.String("code", provErr.Code))
		response.BadGateway(c, provErr.Message)
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	response.Internal(c, op+" failed")
}
