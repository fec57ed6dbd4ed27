package database

import (
	"context"
	"testing"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enqueueTestPayout(t *testing.T, service *Service, sourceRef string) *models.Payout {
	t.Helper()
	payout, err := service.EnqueuePayout(context.Background(), store.EnqueuePayoutParams{
		Address:   claimant,
		Source:    models.PayoutSourceClaim,
		SourceRef: sourceRef,
		Asset:     "USDC",
		Amount:    decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)
	return payout
}

func TestEnqueuePayout_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	first := enqueueTestPayout(t, service, "claim:a:vip")
	second := enqueueTestPayout(t, service, "claim:a:vip")

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, models.PayoutPending, first.Status)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("12.5")))

	pending, err := service.GetPendingPayouts(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEnqueuePayout_RejectsZeroAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.EnqueuePayout(context.Background(), store.EnqueuePayoutParams{
		Address: claimant, Source: models.PayoutSourceClaim, SourceRef: "claim:a:free", Asset: "USDC",
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestMarkPayoutSubmitted(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	payout := enqueueTestPayout(t, service, "milestone:a:7")

	require.NoError(t, service.MarkPayoutSubmitted(ctx, payout.Id, "activity-1"))

	pending, err := service.GetPendingPayouts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Already submitted payouts are not updated again
	err = service.MarkPayoutSubmitted(ctx, payout.Id, "activity-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkPayoutAttemptFailed_FailsAfterMaxAttempts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	payout := enqueueTestPayout(t, service, "claim:a:vip")

	require.NoError(t, service.MarkPayoutAttemptFailed(ctx, payout.Id, "timeout", 2))

	pending, err := service.GetPendingPayouts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "timeout", pending[0].LastError)

	require.NoError(t, service.MarkPayoutAttemptFailed(ctx, payout.Id, "timeout again", 2))

	pending, err = service.GetPendingPayouts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := scanPayout(service.db.QueryRowContext(ctx, queryGetPayoutBySourceRef, "claim:a:vip"))
	require.NoError(t, err)
	assert.Equal(t, models.PayoutFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}
