package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistream/backend/internal/models"
)

func TestReserveFirstSightProceeds(t *testing.T) {
	s := NewMemoryStore()
	res, err := s.Reserve(context.Background(), models.ProviderBilling, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res)

	row := s.Get(models.ProviderBilling, "evt_1")
	require.NotNil(t, row)
	assert.Equal(t, models.OutcomePending, row.Outcome)
}

func TestReserveWhilePendingIsInFlight(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Reserve(ctx, models.ProviderBilling, "evt_1")
	require.NoError(t, err)

	res, err := s.Reserve(ctx, models.ProviderBilling, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, InFlight, res)
}

func TestReserveAfterResolveIsAlreadyApplied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, outcome := range []string{models.OutcomeApplied, models.OutcomeRejected} {
		t.Run(outcome, func(t *testing.T) {
			_, err := s.Reserve(ctx, models.ProviderBilling, "evt_"+outcome)
			require.NoError(t, err)
			require.NoError(t, s.Resolve(ctx, models.ProviderBilling, "evt_"+outcome, outcome))

			res, err := s.Reserve(ctx, models.ProviderBilling, "evt_"+outcome)
			require.NoError(t, err)
			assert.Equal(t, AlreadyApplied, res)
		})
	}
}

func TestEventIDsScopedPerProvider(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Reserve(ctx, models.ProviderBilling, "evt_1")
	require.NoError(t, err)

	res, err := s.Reserve(ctx, models.ProviderStream, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res)
}

func TestResolveIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Reserve(ctx, models.ProviderBilling, "evt_1")
	require.NoError(t, err)
	require.NoError(t, s.Resolve(ctx, models.ProviderBilling, "evt_1", models.OutcomeApplied))
	require.NoError(t, s.Resolve(ctx, models.ProviderBilling, "evt_1", models.OutcomeRejected))

	row := s.Get(models.ProviderBilling, "evt_1")
	assert.Equal(t, models.OutcomeApplied, row.Outcome, "a resolved row is never mutated again")
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	proceeds := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Reserve(ctx, models.ProviderStream, "evt_race")
			assert.NoError(t, err)
			if res == Proceed {
				mu.Lock()
				proceeds++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, proceeds, "exactly one concurrent delivery may proceed")
}

func TestSweepStaleFreesAbandonedReservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	_, err := s.Reserve(ctx, models.ProviderStream, "evt_crashed")
	require.NoError(t, err)
	_, err = s.Reserve(ctx, models.ProviderStream, "evt_resolved")
	require.NoError(t, err)
	require.NoError(t, s.Resolve(ctx, models.ProviderStream, "evt_resolved", models.OutcomeApplied))

	now = now.Add(2 * time.Minute)
	n, err := s.SweepStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The redelivery can claim the event again.
	res, err := s.Reserve(ctx, models.ProviderStream, "evt_crashed")
	require.NoError(t, err)
	assert.Equal(t, Proceed, res)

	// Resolved rows are untouched by the sweep.
	res, err = s.Reserve(ctx, models.ProviderStream, "evt_resolved")
	require.NoError(t, err)
	assert.Equal(t, AlreadyApplied, res)
}

func TestPruneBeforeRemovesResolvedOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	_, err := s.Reserve(ctx, models.ProviderBilling, "evt_old")
	require.NoError(t, err)
	require.NoError(t, s.Resolve(ctx, models.ProviderBilling, "evt_old", models.OutcomeApplied))
	_, err = s.Reserve(ctx, models.ProviderBilling, "evt_pending")
	require.NoError(t, err)

	n, err := s.PruneBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())
}
