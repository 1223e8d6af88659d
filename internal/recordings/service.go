package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/livepeer"
	"github.com/vistream/backend/internal/locks"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/pkg/queue"
	"github.com/vistream/backend/pkg/storage"
)

// ErrAssetNotFound is returned when a recording lookup finds nothing.
var ErrAssetNotFound = errors.New("recording not found")

// StreamLookup resolves provider stream ids to stream records. Read-only:
// the recording writer never mutates streams.
type StreamLookup interface {
	GetByProviderStreamID(ctx context.Context, providerStreamID string) (*models.Stream, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stream, error)
}

// MirrorEnqueuer hands a ready asset off to the mirror worker via the job
// queue.
type MirrorEnqueuer interface {
	EnqueueRecordingMirror(ctx context.Context, payload queue.RecordingMirrorPayload) error
}

// Notifier fans recording updates out to connected clients. Optional.
type Notifier interface {
	NotifyRecordingReady(rec models.Recording)
}

// Service folds asset events into recording records and owns recording
// creation and deletion. All mutation of a stream's recording runs under the
// same per-stream entity lock, whichever path triggered it.
type Service struct {
	store    Store
	streams  StreamLookup
	locks    locks.Coordinator
	queue    MirrorEnqueuer
	provider livepeer.Client
	storage  *storage.S3
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates the recording writer.
func NewService(store Store, streams StreamLookup, lc locks.Coordinator, q MirrorEnqueuer, provider livepeer.Client, st *storage.S3, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, streams: streams, locks: lc, queue: q, provider: provider, storage: st, logger: logger}
}

// SetNotifier attaches the realtime fanout.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func lockKey(streamID uuid.UUID) string {
	return "recording:stream:" + streamID.String()
}

// Apply handles one canonical recording event. The recording is resolved by
// provider asset id first, then by the event's stream reference; a ready
// asset is handed to the mirror worker after the transition persists.
func (s *Service) Apply(ctx context.Context, ev events.Event) error {
	streamID, err := s.resolveStreamID(ctx, ev)
	if err != nil {
		return err
	}

	return s.locks.WithLock(ctx, lockKey(streamID), func(ctx context.Context) error {
		cur, err := s.store.GetByStreamID(ctx, streamID)
		if err != nil {
			return fmt.Errorf("load recording: %w", err)
		}

		next, outcome, err := Transition(cur, ev)
		if err != nil {
			return err
		}
		if outcome == OutcomeStale {
			s.logger.Info("stale recording event ignored",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", string(ev.Type)),
				zap.String("recording_id", cur.ID.String()),
				zap.String("status", cur.Status))
			return nil
		}

		if err := s.store.Update(ctx, &next); err != nil {
			return fmt.Errorf("persist recording: %w", err)
		}

		if next.Status == models.RecordingStatusReady {
			payload := queue.RecordingMirrorPayload{
				RecordingID: next.ID,
				StreamID:    next.StreamID,
				AssetURL:    next.AssetURL,
			}
			if err := s.queue.EnqueueRecordingMirror(ctx, payload); err != nil {
				return fmt.Errorf("enqueue recording mirror: %w", err)
			}
			if s.notifier != nil {
				s.notifier.NotifyRecordingReady(next)
			}
		}

		s.logger.Info("recording event applied",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.Type)),
			zap.String("recording_id", next.ID.String()),
			zap.String("status", next.Status))
		return nil
	})
}

// resolveStreamID maps the event onto the owning stream. Provider asset id
// wins when a recording already carries it; otherwise the event's stream
// reference is used. Neither resolving is events.ErrUnknownSubject.
func (s *Service) resolveStreamID(ctx context.Context, ev events.Event) (uuid.UUID, error) {
	if ev.SubjectID != "" {
		rec, err := s.store.GetByProviderAssetID(ctx, ev.SubjectID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("load recording by asset: %w", err)
		}
		if rec != nil {
			return rec.StreamID, nil
		}
	}
	if ev.StreamID != "" {
		stream, err := s.streams.GetByProviderStreamID(ctx, ev.StreamID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("load stream: %w", err)
		}
		if stream != nil {
			return stream.ID, nil
		}
	}
	return uuid.Nil, events.ErrUnknownSubject
}

// CreateForStream creates the pending recording for an ended stream. Safe to
// call repeatedly: the per-stream uniqueness makes repeats a no-op.
func (s *Service) CreateForStream(ctx context.Context, streamID uuid.UUID) (*models.Recording, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("load stream: %w", err)
	}
	if stream == nil {
		return nil, ErrAssetNotFound
	}

	rec := &models.Recording{StreamID: stream.ID, Status: models.RecordingStatusPending}
	err = s.locks.WithLock(ctx, lockKey(stream.ID), func(ctx context.Context) error {
		created, err := s.store.Create(ctx, rec)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		if created {
			s.logger.Info("recording created",
				zap.String("recording_id", rec.ID.String()),
				zap.String("stream_id", stream.ID.String()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteAsset removes the provider asset and the S3 mirror, then marks the
// recording deleted. Safe to call repeatedly: a provider 404 and an already
// deleted recording are both no-ops.
func (s *Service) DeleteAsset(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}
	if rec == nil {
		return nil, ErrAssetNotFound
	}

	var out *models.Recording
	err = s.locks.WithLock(ctx, lockKey(rec.StreamID), func(ctx context.Context) error {
		cur, err := s.store.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load recording: %w", err)
		}
		if cur == nil {
			return ErrAssetNotFound
		}
		if cur.Status == models.RecordingStatusDeleted {
			out = cur
			return nil
		}

		if cur.ProviderAssetID != "" {
			if err := s.provider.DeleteAsset(ctx, cur.ProviderAssetID); err != nil {
				var perr *livepeer.ProviderError
				if !errors.As(err, &perr) || !perr.NotFound() {
					return fmt.Errorf("delete provider asset: %w", err)
				}
			}
		}
		if cur.MirrorKey != "" && s.storage != nil {
			if err := s.storage.DeleteRecording(ctx, cur.MirrorKey); err != nil {
				return fmt.Errorf("delete mirror: %w", err)
			}
		}

		cur.Status = models.RecordingStatusDeleted
		now := time.Now().UTC()
		cur.DeletedAt = &now
		if err := s.store.Update(ctx, cur); err != nil {
			return fmt.Errorf("persist recording: %w", err)
		}
		s.logger.Info("recording deleted",
			zap.String("recording_id", cur.ID.String()),
			zap.String("stream_id", cur.StreamID.String()))
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadURL returns a presigned link for the mirrored copy, falling back to
// the provider asset URL when no mirror exists yet.
func (s *Service) DownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load recording: %w", err)
	}
	if rec == nil || rec.Status == models.RecordingStatusDeleted {
		return "", ErrAssetNotFound
	}
	if rec.Status != models.RecordingStatusReady {
		return "", ErrAssetNotFound
	}
	if rec.MirrorKey != "" && s.storage != nil {
		return s.storage.GeneratePresignedDownloadURL(ctx, rec.MirrorKey, s.storage.PresignExpire())
	}
	return rec.AssetURL, nil
}
