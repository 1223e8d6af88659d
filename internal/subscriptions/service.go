package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/locks"
)

// Service folds normalized billing events into subscription records. All
// mutation runs under the per-subscription entity lock.
type Service struct {
	store   Store
	locks   locks.Coordinator
	machine Machine
	logger  *zap.Logger
}

// NewService creates the subscription event applier.
func NewService(store Store, lc locks.Coordinator, machine Machine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, locks: lc, machine: machine, logger: logger}
}

// Apply handles one canonical billing event: acquire the entity lock, read
// current state, run the pure transition, persist, update the user tier.
// Stale and post-terminal events are absorbed as logged no-ops.
func (s *Service) Apply(ctx context.Context, ev events.Event) error {
	return s.locks.WithLock(ctx, "subscription:"+ev.SubjectID, func(ctx context.Context) error {
		cur, err := s.store.GetByProviderSubscriptionID(ctx, ev.SubjectID)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}

		next, outcome, err := s.machine.Transition(cur, ev)
		if err != nil {
			return err
		}
		if outcome == OutcomeStale {
			s.logger.Info("stale subscription event ignored",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", string(ev.Type)),
				zap.String("subscription_id", ev.SubjectID))
			return nil
		}

		if cur == nil {
			userID, err := uuid.Parse(ev.UserRef)
			if err != nil {
				return fmt.Errorf("%w: activation without user reference", events.ErrUnknownSubject)
			}
			next.UserID = userID
		}

		if err := s.store.Upsert(ctx, &next); err != nil {
			return fmt.Errorf("persist subscription: %w", err)
		}
		if err := s.store.SetUserTier(ctx, next.UserID, EffectiveTier(next)); err != nil {
			return fmt.Errorf("update user tier: %w", err)
		}

		s.logger.Info("subscription event applied",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.Type)),
			zap.String("subscription_id", ev.SubjectID),
			zap.String("status", next.Status))
		return nil
	})
}
