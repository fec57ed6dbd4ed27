package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimant = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func fundUser(t *testing.T, service *Service, address string, votes int) {
	t.Helper()
	for i := 0; i < votes; i++ {
		_, err := service.AwardPoints(context.Background(), address, store.ActionVote, store.VoteExternalId(address, fmt.Sprintf("tt%07d", i)))
		require.NoError(t, err)
	}
}

func TestGetPoints_UnknownUser(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetPoints(context.Background(), "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimReward_ExactBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fundUser(t, service, claimant, 5)

	claim, err := service.ClaimReward(ctx, store.ClaimParams{
		Address:     claimant,
		RewardId:    "premium_badge",
		PointsCost:  50,
		TokenAmount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "premium_badge", claim.RewardId)
	assert.True(t, claim.TokenAmount.Equal(decimal.NewFromInt(5)))

	summary, err := service.GetPoints(ctx, claimant)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Points)
	assert.Equal(t, []string{"premium_badge"}, summary.ClaimedRewards)

	// Second claim of the same reward
	_, err = service.ClaimReward(ctx, store.ClaimParams{Address: claimant, RewardId: "premium_badge", PointsCost: 0})
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)

	require.NoError(t, service.ReconcilePoints(ctx, claimant))
}

func TestClaimReward_InsufficientPoints(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fundUser(t, service, claimant, 2)

	_, err := service.ClaimReward(ctx, store.ClaimParams{Address: claimant, RewardId: "nft_poster", PointsCost: 100})
	assert.ErrorIs(t, err, store.ErrInsufficientPoints)

	summary, err := service.GetPoints(ctx, claimant)
	require.NoError(t, err)
	assert.Equal(t, int64(20), summary.Points, "balance must be unchanged")
	assert.Empty(t, summary.ClaimedRewards)
}

func TestClaimReward_UnknownUser(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.ClaimReward(context.Background(), store.ClaimParams{Address: claimant, RewardId: "premium_badge", PointsCost: 10})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimReward_ConcurrentClaimsSucceedOnce(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "claims.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer service.Close()

	fundUser(t, service, claimant, 10)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.ClaimReward(ctx, store.ClaimParams{Address: claimant, RewardId: "vip", PointsCost: 40})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, succeeded)

	summary, err := service.GetPoints(ctx, claimant)
	require.NoError(t, err)
	assert.Equal(t, int64(60), summary.Points)
	require.NoError(t, service.ReconcilePoints(ctx, claimant))
}
