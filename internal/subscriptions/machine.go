package subscriptions

import (
	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

// Outcome classifies the result of folding one event into a subscription.
type Outcome int

const (
	// OutcomeApplied: the event changed subscription state.
	OutcomeApplied Outcome = iota
	// OutcomeStale: the event is out-of-order or post-terminal; no change.
	OutcomeStale
)

// Machine is the pure subscription transition function. Price ids map the
// provider's checkout prices onto membership tiers.
type Machine struct {
	MemberPriceID  string
	PremiumPriceID string
}

// TierForPrice resolves the membership tier purchased under a price id.
func (m Machine) TierForPrice(priceID string) models.Tier {
	switch priceID {
	case m.PremiumPriceID:
		return models.TierPremium
	case m.MemberPriceID:
		return models.TierMember
	}
	return models.TierMember
}

// Transition folds ev into cur and returns the next state. cur == nil means
// no subscription exists yet; only an activation event may create one, any
// other event for an unknown subscription is events.ErrUnknownSubject.
//
// Rules: canceled is terminal; events older than the stored last event are
// stale no-ops; current_period_end only ever advances. A checkout whose
// payment has not settled creates the subscription incomplete; the first
// paid invoice moves it to active.
func (m Machine) Transition(cur *models.Subscription, ev events.Event) (models.Subscription, Outcome, error) {
	if cur == nil {
		if ev.Type != events.TypeSubscriptionActivated {
			return models.Subscription{}, OutcomeStale, events.ErrUnknownSubject
		}
		status := models.SubscriptionStatusActive
		if ev.PaymentPending {
			status = models.SubscriptionStatusIncomplete
		}
		next := models.Subscription{
			ProviderSubscriptionID: ev.SubjectID,
			ProviderCustomerID:     ev.CustomerID,
			Tier:                   m.TierForPrice(ev.PriceID),
			Status:                 status,
			CurrentPeriodEnd:       ev.PeriodEnd,
			LastEventID:            ev.EventID,
			LastEventAt:            ev.OccurredAt,
		}
		return next, OutcomeApplied, nil
	}

	next := *cur
	if cur.Status == models.SubscriptionStatusCanceled {
		return next, OutcomeStale, nil
	}
	if ev.OccurredAt.Before(cur.LastEventAt) {
		return next, OutcomeStale, nil
	}

	switch ev.Type {
	case events.TypeSubscriptionActivated:
		// A replayed pending checkout never regresses a settled subscription.
		if !ev.PaymentPending {
			next.Status = models.SubscriptionStatusActive
		}
		if ev.PriceID != "" {
			next.Tier = m.TierForPrice(ev.PriceID)
		}
		if ev.PeriodEnd.After(next.CurrentPeriodEnd) {
			next.CurrentPeriodEnd = ev.PeriodEnd
		}
	case events.TypeSubscriptionRenewed:
		next.Status = models.SubscriptionStatusActive
		if ev.PeriodEnd.After(next.CurrentPeriodEnd) {
			next.CurrentPeriodEnd = ev.PeriodEnd
		}
	case events.TypeSubscriptionPastDue:
		next.Status = models.SubscriptionStatusPastDue
	case events.TypeSubscriptionCanceled:
		next.Status = models.SubscriptionStatusCanceled
		t := ev.OccurredAt
		next.CanceledAt = &t
	default:
		return next, OutcomeStale, nil
	}

	next.LastEventID = ev.EventID
	next.LastEventAt = ev.OccurredAt
	return next, OutcomeApplied, nil
}

// EffectiveTier returns the membership tier a user is entitled to under the
// given subscription state. past_due and canceled both drop entitlement.
func EffectiveTier(sub models.Subscription) models.Tier {
	if sub.Status == models.SubscriptionStatusActive {
		return sub.Tier
	}
	return models.TierFree
}
