package streams

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/livepeer"
	"github.com/vistream/backend/internal/middleware"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/pkg/response"
)

// Handler exposes the callable stream operations: provisioning and status
// forwards to the video provider plus the persisted stream record.
type Handler struct {
	store    Store
	livepeer livepeer.Client
	logger   *zap.Logger
}

// NewHandler creates the streams handler.
func NewHandler(store Store, client livepeer.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, livepeer: client, logger: logger}
}

// CreateRequest is the body for POST /streams.
type CreateRequest struct {
	Title            string `json:"title" binding:"required"`
	RecordingEnabled bool   `json:"recording_enabled"`
}

// Create handles POST /streams: provisions the provider stream and persists
// the record in idle status.
func (h *Handler) Create(c *gin.Context) {
	creatorID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	provisioned, err := h.livepeer.CreateStream(c.Request.Context(), req.Title, req.RecordingEnabled)
	if err != nil {
		h.respondProviderError(c, "provision stream", err)
		return
	}

	stream := &models.Stream{
		CreatorID:        creatorID,
		ProviderStreamID: provisioned.ID,
		Title:            req.Title,
		Status:           models.StreamStatusIdle,
		StreamKey:        provisioned.StreamKey,
		RTMPIngestURL:    provisioned.RTMPIngest,
		PlaybackURL:      provisioned.PlaybackURL,
		RecordingEnabled: req.RecordingEnabled,
	}
	if err := h.store.Create(c.Request.Context(), stream); err != nil {
		h.logger.Error("persist stream failed", zap.Error(err), zap.String("provider_stream_id", provisioned.ID))
		response.Internal(c, "failed to save stream")
		return
	}

	response.Created(c, gin.H{
		"stream_id":    stream.ID,
		"stream_key":   provisioned.StreamKey,
		"rtmp_url":     provisioned.RTMPIngest,
		"playback_url": provisioned.PlaybackURL,
	})
}

// Delete handles DELETE /streams/:id: removes the provider stream. The local
// record is archived, never deleted.
func (h *Handler) Delete(c *gin.Context) {
	stream, ok := h.ownedStream(c)
	if !ok {
		return
	}
	if err := h.livepeer.DeleteStream(c.Request.Context(), stream.ProviderStreamID); err != nil {
		var provErr *livepeer.ProviderError
		if !errors.As(err, &provErr) || !provErr.NotFound() {
			h.respondProviderError(c, "delete stream", err)
			return
		}
	}
	response.OK(c, gin.H{"ok": true})
}

// Status handles GET /streams/:id/status: live status straight from the
// provider, with the locally synchronized state alongside.
func (h *Handler) Status(c *gin.Context) {
	stream, ok := h.ownedStream(c)
	if !ok {
		return
	}
	provider, err := h.livepeer.GetStream(c.Request.Context(), stream.ProviderStreamID)
	if err != nil {
		h.respondProviderError(c, "get stream status", err)
		return
	}
	response.OK(c, gin.H{
		"status":       stream.Status,
		"is_active":    provider.IsActive,
		"viewer_count": stream.ViewerCount,
	})
}

// List handles GET /streams: the creator's streams.
func (h *Handler) List(c *gin.Context) {
	creatorID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	list, err := h.store.ListByCreator(c.Request.Context(), creatorID)
	if err != nil {
		h.logger.Error("list streams failed", zap.Error(err))
		response.Internal(c, "failed to list streams")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /streams/:id.
func (h *Handler) GetByID(c *gin.Context) {
	stream, ok := h.ownedStream(c)
	if !ok {
		return
	}
	response.OK(c, stream)
}

func (h *Handler) ownedStream(c *gin.Context) (*models.Stream, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid stream id")
		return nil, false
	}
	stream, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load stream failed", zap.Error(err))
		response.Internal(c, "failed to load stream")
		return nil, false
	}
	if stream == nil {
		response.NotFound(c, "stream not found")
		return nil, false
	}
	if stream.CreatorID != userID {
		response.Forbidden(c, "not your stream")
		return nil, false
	}
	return stream, true
}

func (h *Handler) respondProviderError(c *gin.Context, op string, err error) {
	var provErr *livepeer.ProviderError
	if errors.As(err, &provErr) {
		h.logger.Warn(op+" provider error", zap.Int("status", provErr.StatusCode))
		response.BadGateway(c, provErr.Message)
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	response.Internal(c, op+" failed")
}
