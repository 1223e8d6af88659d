package recordings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/middleware"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/pkg/response"
)

// Handler exposes the callable recording operations.
type Handler struct {
	service *Service
	store   Store
	streams StreamLookup
	logger  *zap.Logger
}

// NewHandler creates the recordings handler.
func NewHandler(service *Service, store Store, streams StreamLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, store: store, streams: streams, logger: logger}
}

// GetByStream handles GET /streams/:id/recording.
func (h *Handler) GetByStream(c *gin.Context) {
	stream, ok := h.ownedStream(c)
	if !ok {
		return
	}
	rec, err := h.store.GetByStreamID(c.Request.Context(), stream.ID)
	if err != nil {
		h.logger.Error("load recording failed", zap.Error(err))
		response.Internal(c, "failed to load recording")
		return
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return
	}
	response.OK(c, rec)
}

// Create handles POST /streams/:id/recording: manual recovery when the
// queued creation job was lost. Idempotent.
func (h *Handler) Create(c *gin.Context) {
	stream, ok := h.ownedStream(c)
	if !ok {
		return
	}
	if stream.Status != models.StreamStatusEnded {
		response.BadRequest(c, "stream has not ended")
		return
	}
	if !stream.RecordingEnabled {
		response.BadRequest(c, "recording not enabled for this stream")
		return
	}
	rec, err := h.service.CreateForStream(c.Request.Context(), stream.ID)
	if err != nil {
		h.logger.Error("create recording failed", zap.Error(err), zap.String("stream_id", stream.ID.String()))
		response.Internal(c, "failed to create recording")
		return
	}
	response.Created(c, rec)
}

// Delete handles DELETE /recordings/:id: removes the provider asset and the
// mirror. Repeat calls succeed.
func (h *Handler) Delete(c *gin.Context) {
	rec, ok := h.ownedRecording(c)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteAsset(c.Request.Context(), rec.ID)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("delete recording failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to delete recording")
		return
	}
	response.OK(c, deleted)
}

// DownloadURL handles GET /recordings/:id/download-url: a presigned link for
// the mirrored copy, or the provider URL when no mirror exists yet.
func (h *Handler) DownloadURL(c *gin.Context) {
	rec, ok := h.ownedRecording(c)
	if !ok {
		return
	}
	url, err := h.service.DownloadURL(c.Request.Context(), rec.ID)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			response.NotFound(c, "recording not ready")
			return
		}
		h.logger.Error("presign download failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url})
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
	stream, err := h.streams.GetByID(c.Request.Context(), id)
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

func (h *Handler) ownedRecording(c *gin.Context) (*models.Recording, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return nil, false
	}
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load recording failed", zap.Error(err))
		response.Internal(c, "failed to load recording")
		return nil, false
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return nil, false
	}
	stream, err := h.streams.GetByID(c.Request.Context(), rec.StreamID)
	if err != nil {
		h.logger.Error("load stream failed", zap.Error(err))
		response.Internal(c, "failed to load stream")
		return nil, false
	}
	if stream == nil || stream.CreatorID != userID {
		response.Forbidden(c, "not your recording")
		return nil, false
	}
	return rec, true
}
