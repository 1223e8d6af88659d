package models

import "time"

// Webhook providers.
const (
	ProviderBilling = "billing"
	ProviderStream  = "stream"
)

// Webhook event outcomes in the idempotency ledger. A row is created in
// pending on first sight and resolved to applied or rejected exactly once.
const (
	OutcomePending  = "pending"
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// WebhookEvent is one row of the idempotency ledger, keyed by
// (provider, event_id).
type WebhookEvent struct {
	Provider   string     `json:"provider"`
	EventID    string     `json:"event_id"`
	Outcome    string     `json:"outcome"`
	ReceivedAt time.Time  `json:"received_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
