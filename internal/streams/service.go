package streams

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/locks"
	"github.com/vistream/backend/internal/models"
	"github.com/vistream/backend/pkg/queue"
)

// RecordingEnqueuer hands an ended stream off to the recording writer via the
// job queue. The hand-off is asynchronous so the stream fold never calls into
// another entity's writer.
type RecordingEnqueuer interface {
	EnqueueRecordingCreate(ctx context.Context, payload queue.RecordingCreatePayload) error
}

// Notifier fans stream updates out to connected clients. Optional.
type Notifier interface {
	NotifyStreamStatus(stream models.Stream)
	NotifyViewerCount(streamID uuid.UUID, count int)
}

// Service folds normalized lifecycle events into stream records. All
// lifecycle mutation runs under the per-stream entity lock.
type Service struct {
	store    Store
	locks    locks.Coordinator
	queue    RecordingEnqueuer
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates the stream event applier.
func NewService(store Store, lc locks.Coordinator, q RecordingEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, locks: lc, queue: q, logger: logger}
}

// SetNotifier attaches the realtime fanout.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Apply handles one canonical stream event. Viewer-count hints bypass the
// lifecycle fold entirely; authoritative events run lock → read → transition
// → persist. Ending a stream with recording enabled enqueues the recording
// creation job.
func (s *Service) Apply(ctx context.Context, ev events.Event) error {
	if ev.Type == events.TypeViewerCount {
		return s.applyViewerHint(ctx, ev)
	}

	return s.locks.WithLock(ctx, "stream:"+ev.SubjectID, func(ctx context.Context) error {
		cur, err := s.store.GetByProviderStreamID(ctx, ev.SubjectID)
		if err != nil {
			return fmt.Errorf("load stream: %w", err)
		}

		next, outcome, err := Transition(cur, ev)
		if err != nil {
			return err
		}
		if outcome == OutcomeStale {
			s.logger.Info("stale stream event ignored",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", string(ev.Type)),
				zap.String("stream_id", ev.SubjectID))
			return nil
		}

		if err := s.store.Update(ctx, &next); err != nil {
			return fmt.Errorf("persist stream: %w", err)
		}

		if next.Status == models.StreamStatusEnded && cur.Status != models.StreamStatusEnded && next.RecordingEnabled {
			if err := s.queue.EnqueueRecordingCreate(ctx, queue.RecordingCreatePayload{StreamID: next.ID}); err != nil {
				return fmt.Errorf("enqueue recording create: %w", err)
			}
		}

		if s.notifier != nil {
			s.notifier.NotifyStreamStatus(next)
		}
		s.logger.Info("stream event applied",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.Type)),
			zap.String("stream_id", ev.SubjectID),
			zap.String("status", next.Status))
		return nil
	})
}

// applyViewerHint stores the non-authoritative viewer count. No entity lock:
// hints must never block or reorder lifecycle transitions.
func (s *Service) applyViewerHint(ctx context.Context, ev events.Event) error {
	cur, err := s.store.GetByProviderStreamID(ctx, ev.SubjectID)
	if err != nil {
		return fmt.Errorf("load stream: %w", err)
	}
	if cur == nil {
		return events.ErrUnknownSubject
	}
	if err := s.store.UpdateViewerCount(ctx, cur.ID, ev.ViewerCount); err != nil {
		return fmt.Errorf("persist viewer count: %w", err)
	}
	if s.notifier != nil {
		s.notifier.NotifyViewerCount(cur.ID, ev.ViewerCount)
	}
	return nil
}
