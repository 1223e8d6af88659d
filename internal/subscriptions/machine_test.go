package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistream/backend/internal/events"
	"github.com/vistream/backend/internal/models"
)

var testMachine = Machine{MemberPriceID: "price_member", PremiumPriceID: "price_premium"}

func billingEvent(typ events.Type, at time.Time) events.Event {
	return events.Event{
		Provider:   models.ProviderBilling,
		EventID:    "evt_" + string(typ),
		Type:       typ,
		OccurredAt: at,
		SubjectID:  "sub_1",
	}
}

func TestTransitionActivationCreates(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := billingEvent(events.TypeSubscriptionActivated, at)
	ev.CustomerID = "cus_1"
	ev.PriceID = "price_premium"

	next, outcome, err := testMachine.Transition(nil, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusActive, next.Status)
	assert.Equal(t, models.TierPremium, next.Tier)
	assert.Equal(t, "sub_1", next.ProviderSubscriptionID)
	assert.Equal(t, "cus_1", next.ProviderCustomerID)
	assert.Equal(t, at, next.LastEventAt)
}

func TestTransitionPendingCheckoutCreatesIncomplete(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := billingEvent(events.TypeSubscriptionActivated, at)
	ev.PriceID = "price_member"
	ev.PaymentPending = true

	next, outcome, err := testMachine.Transition(nil, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusIncomplete, next.Status)
	assert.Equal(t, models.TierFree, EffectiveTier(next))

	// The first paid invoice settles the charge and activates.
	paid := billingEvent(events.TypeSubscriptionRenewed, at.Add(time.Hour))
	paid.PeriodEnd = at.AddDate(0, 1, 0)
	active, outcome, err := testMachine.Transition(&next, paid)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusActive, active.Status)
	assert.Equal(t, models.TierMember, EffectiveTier(active))
}

func TestTransitionPendingReplayKeepsActive(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		Tier:                   models.TierMember,
		LastEventAt:            base,
	}

	ev := billingEvent(events.TypeSubscriptionActivated, base.Add(time.Minute))
	ev.PaymentPending = true
	next, _, err := testMachine.Transition(cur, ev)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, next.Status)
}

func TestTransitionUnknownSubscription(t *testing.T) {
	for _, typ := range []events.Type{
		events.TypeSubscriptionRenewed,
		events.TypeSubscriptionPastDue,
		events.TypeSubscriptionCanceled,
	} {
		t.Run(string(typ), func(t *testing.T) {
			_, _, err := testMachine.Transition(nil, billingEvent(typ, time.Now()))
			assert.ErrorIs(t, err, events.ErrUnknownSubject)
		})
	}
}

func TestTransitionRenewalAdvancesPeriodEnd(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusPastDue,
		Tier:                   models.TierMember,
		CurrentPeriodEnd:       base.AddDate(0, 1, 0),
		LastEventAt:            base,
	}

	ev := billingEvent(events.TypeSubscriptionRenewed, base.Add(time.Hour))
	ev.PeriodEnd = base.AddDate(0, 2, 0)
	next, outcome, err := testMachine.Transition(cur, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusActive, next.Status)
	assert.Equal(t, base.AddDate(0, 2, 0), next.CurrentPeriodEnd)
}

func TestTransitionPeriodEndNeverRegresses(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodEnd:       base.AddDate(0, 2, 0),
		LastEventAt:            base,
	}

	ev := billingEvent(events.TypeSubscriptionRenewed, base.Add(time.Hour))
	ev.PeriodEnd = base.AddDate(0, 1, 0)
	next, outcome, err := testMachine.Transition(cur, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, base.AddDate(0, 2, 0), next.CurrentPeriodEnd, "stored period end must be kept")
}

func TestTransitionOutOfOrderEventIsStale(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		LastEventAt:            base,
	}

	ev := billingEvent(events.TypeSubscriptionPastDue, base.Add(-time.Minute))
	next, outcome, err := testMachine.Transition(cur, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)
	assert.Equal(t, models.SubscriptionStatusActive, next.Status)
}

func TestTransitionCanceledIsTerminal(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		LastEventAt:            base,
	}

	cancel := billingEvent(events.TypeSubscriptionCanceled, base.Add(time.Hour))
	canceled, outcome, err := testMachine.Transition(cur, cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)

	renew := billingEvent(events.TypeSubscriptionRenewed, base.Add(2*time.Hour))
	renew.PeriodEnd = base.AddDate(0, 3, 0)
	after, outcome, err := testMachine.Transition(&canceled, renew)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)
	assert.Equal(t, models.SubscriptionStatusCanceled, after.Status)
}

func TestTransitionPastDueThenRenewed(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cur := &models.Subscription{
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		Tier:                   models.TierMember,
		LastEventAt:            base,
	}

	pastDue, outcome, err := testMachine.Transition(cur, billingEvent(events.TypeSubscriptionPastDue, base.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusPastDue, pastDue.Status)
	assert.Equal(t, models.TierFree, EffectiveTier(pastDue))

	renewed, outcome, err := testMachine.Transition(&pastDue, billingEvent(events.TypeSubscriptionRenewed, base.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusActive, renewed.Status)
	assert.Equal(t, models.TierMember, EffectiveTier(renewed))
}

func TestTierForPrice(t *testing.T) {
	assert.Equal(t, models.TierPremium, testMachine.TierForPrice("price_premium"))
	assert.Equal(t, models.TierMember, testMachine.TierForPrice("price_member"))
	assert.Equal(t, models.TierMember, testMachine.TierForPrice("price_unknown"))
}
