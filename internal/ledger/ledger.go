// Package ledger implements the webhook idempotency guard: a durable
// (provider, event_id) ledger consulted before any event side effects run.
package ledger

import (
	"context"
	"time"
)

// Reservation is the outcome of attempting to claim an event for processing.
type Reservation int

const (
	// Proceed: first sight of the event; the caller owns processing it.
	Proceed Reservation = iota
	// AlreadyApplied: a prior delivery was resolved (applied or rejected);
	// the caller must acknowledge without reprocessing.
	AlreadyApplied
	// InFlight: a concurrent delivery of the same event is still pending;
	// the caller must answer with a retryable status.
	InFlight
)

// String returns the reservation name for logging.
func (r Reservation) String() string {
	switch r {
	case Proceed:
		return "proceed"
	case AlreadyApplied:
		return "already_applied"
	case InFlight:
		return "in_flight"
	}
	return "unknown"
}

// Store is the idempotency ledger. Reserve must be atomic: exactly one
// concurrent caller per (provider, eventID) observes Proceed.
type Store interface {
	// Reserve inserts a pending row for (provider, eventID) on first sight.
	Reserve(ctx context.Context, provider, eventID string) (Reservation, error)
	// Resolve flips a pending row to applied or rejected. Terminal; a
	// resolved row is never mutated again.
	Resolve(ctx context.Context, provider, eventID, outcome string) error
	// SweepStale removes pending rows older than the bound so a provider
	// redelivery can re-reserve them (crash recovery). Returns rows swept.
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
	// PruneBefore deletes resolved rows received before t (optional
	// retention housekeeping). Returns rows pruned.
	PruneBefore(ctx context.Context, t time.Time) (int, error)
}
