package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus values. Transitions only move forward through the
// subscription state machine; canceled is terminal.
const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
)

// Subscription is a billing subscription synchronized from provider webhooks.
// It is never physically deleted; cancellation retires it logically.
type Subscription struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 uuid.UUID  `json:"user_id"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	ProviderCustomerID     string     `json:"provider_customer_id,omitempty"`
	Tier                   Tier       `json:"tier"`
	Status                 string     `json:"status"`
	CurrentPeriodEnd       time.Time  `json:"current_period_end"`
	CanceledAt             *time.Time `json:"canceled_at,omitempty"`
	LastEventID            string     `json:"last_event_id,omitempty"`
	LastEventAt            time.Time  `json:"last_event_at"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}
