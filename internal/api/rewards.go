package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

// ListRewards returns the reward catalog in file order.
func (s *Service) ListRewards() []models.Reward {
	rewards := make([]models.Reward, len(s.catalog))
	copy(rewards, s.catalog)
	return rewards
}

// ClaimReward redeems a catalog reward for points. A reward with a token
// amount also queues a payout to the user's wallet.
func (s *Service) ClaimReward(ctx context.Context, req models.ClaimRequest) (*models.ClaimResult, error) {
	req.UserId = NormalizeAddress(req.UserId)
	req.RewardId = strings.TrimSpace(req.RewardId)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	reward, ok := s.rewards[req.RewardId]
	if !ok {
		return nil, fmt.Errorf("%w: reward %s", store.ErrNotFound, req.RewardId)
	}
	if req.PointsCost != nil && *req.PointsCost != reward.PointsCost {
		return nil, fmt.Errorf("%w: pointsCost %d does not match reward cost %d", store.ErrValidation, *req.PointsCost, reward.PointsCost)
	}
	if req.TokenAmount != nil && !req.TokenAmount.Equal(reward.TokenAmount) {
		return nil, fmt.Errorf("%w: tokenAmount %s does not match reward amount %s", store.ErrValidation, req.TokenAmount, reward.TokenAmount)
	}

	unlock := s.locks.Lock(req.UserId)
	defer unlock()

	claim, err := s.ledger.ClaimReward(ctx, store.ClaimParams{
		Address:     req.UserId,
		RewardId:    reward.Id,
		PointsCost:  reward.PointsCost,
		TokenAmount: reward.TokenAmount,
	})
	if err != nil {
		s.metrics.ObserveClaim(claimOutcome(err))
		switch {
		case errors.Is(err, store.ErrAlreadyClaimed), errors.Is(err, store.ErrInsufficientPoints), errors.Is(err, store.ErrNotFound):
			zap.L().Warn("Reward claim rejected",
				zap.String("address", req.UserId),
				zap.String("reward_id", reward.Id),
				zap.Error(err))
		default:
			zap.L().Error("Reward claim failed",
				zap.String("address", req.UserId),
				zap.String("reward_id", reward.Id),
				zap.Error(err))
		}
		return nil, err
	}
	s.metrics.ObserveClaim("claimed")

	result := &models.ClaimResult{
		Address:     claim.UserAddress,
		RewardId:    claim.RewardId,
		PointsCost:  claim.PointsCost,
		TokenAmount: claim.TokenAmount,
	}

	if s.payouts != nil && reward.TokenAmount.IsPositive() {
		payout, err := s.payouts.EnqueuePayout(ctx, store.EnqueuePayoutParams{
			Address:   req.UserId,
			Source:    models.PayoutSourceClaim,
			SourceRef: store.ClaimExternalId(req.UserId, reward.Id),
			Asset:     s.payoutAsset,
			Amount:    reward.TokenAmount,
		})
		if err != nil {
			zap.L().Error("Failed to queue claim payout",
				zap.String("address", req.UserId),
				zap.String("reward_id", reward.Id),
				zap.Error(err))
		} else {
			result.PayoutId = payout.Id
		}
	}

	// The claim is committed; a failed balance read only omits the balance.
	if summary, err := s.ledger.GetPoints(ctx, req.UserId); err != nil {
		zap.L().Warn("Balance lookup after claim failed", zap.String("address", req.UserId), zap.Error(err))
	} else {
		result.Balance = &summary.Points
	}

	return result, nil
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, store.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, store.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, store.ErrNotFound):
		return "unknown_user"
	}
	return "error"
}
