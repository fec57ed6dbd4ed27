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

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// AwardPoints credits a points-earning action. Each action has its own
// idempotency key, so a replay is rejected with store.ErrDuplicateTransaction.
func (s *Service) AwardPoints(ctx context.Context, req models.AwardRequest) (*models.AwardResult, error) {
	req.Address = NormalizeAddress(req.Address)
	req.ReferredAddress = NormalizeAddress(req.ReferredAddress)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.MovieId = strings.TrimSpace(req.MovieId)
	req.Reference = strings.TrimSpace(req.Reference)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateAction(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.Address)
	defer unlock()

	action := store.ActionType(req.Type)
	externalId, err := s.awardKey(ctx, action, req)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Awarding points",
		zap.String("address", req.Address),
		zap.String("type", req.Type),
		zap.String("external_id", externalId))

	tx, err := s.ledger.AwardPoints(ctx, req.Address, action, externalId)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Warn("Points already awarded for action",
				zap.String("address", req.Address),
				zap.String("external_id", externalId))
		} else {
			zap.L().Error("Points award failed",
				zap.String("address", req.Address),
				zap.String("type", req.Type),
				zap.Error(err))
		}
		return nil, err
	}
	s.metrics.ObservePoints(req.Type, tx.Amount)

	return &models.AwardResult{
		Address:       req.Address,
		Action:        req.Type,
		PointsAwarded: tx.Amount,
		Balance:       tx.BalanceAfter,
	}, nil
}

// validateAction checks the fields each action type carries.
func validateAction(req models.AwardRequest) error {
	switch store.ActionType(req.Type) {
	case store.ActionVote:
		if req.MovieId == "" {
			return fmt.Errorf("%w: movieId is required for vote awards", store.ErrValidation)
		}
	case store.ActionShare:
		if req.Reference == "" {
			return fmt.Errorf("%w: reference is required for share awards", store.ErrValidation)
		}
	case store.ActionReferral:
		if err := validateAddress(req.ReferredAddress); err != nil {
			return fmt.Errorf("%w: referredAddress is required for referral awards", store.ErrValidation)
		}
		if req.ReferredAddress == req.Address {
			return fmt.Errorf("%w: an address cannot refer itself", store.ErrValidation)
		}
	}
	return nil
}

// awardKey builds the idempotency key for an action. A vote award requires the vote to exist.
func (s *Service) awardKey(ctx context.Context, action store.ActionType, req models.AwardRequest) (string, error) {
	switch action {
	case store.ActionVote:
		votes, err := s.votes.GetVotesByAddress(ctx, req.Address)
		if err != nil {
			return "", err
		}
		for _, v := range votes {
			if v.MovieId == req.MovieId {
				return store.VoteExternalId(req.Address, req.MovieId), nil
			}
		}
		return "", fmt.Errorf("%w: no vote by %s on movie %s", store.ErrNotFound, req.Address, req.MovieId)
	case store.ActionShare:
		return store.ShareExternalId(req.Address, req.Reference), nil
	case store.ActionLogin:
		return store.LoginExternalId(req.Address, s.calc.Day(s.now())), nil
	case store.ActionReferral:
		return store.ReferralExternalId(req.ReferredAddress), nil
	}
	return "", fmt.Errorf("%w: unknown action type %q", store.ErrValidation, action)
}

// GetPoints returns the spendable balance and claimed rewards of a user.
func (s *Service) GetPoints(ctx context.Context, address string) (*models.PointsSummary, error) {
	address = NormalizeAddress(address)
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	summary, err := s.ledger.GetPoints(ctx, address)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("Points lookup failed", zap.String("address", address), zap.Error(err))
		}
		return nil, err
	}
	if summary.ClaimedRewards == nil {
		summary.ClaimedRewards = []string{}
	}
	return summary, nil
}

// GetPointsHistory returns a page of the points audit trail, newest first.
// A zero limit means DefaultHistoryLimit.
func (s *Service) GetPointsHistory(ctx context.Context, address string, limit, offset int) ([]models.PointsRecord, error) {
	address = NormalizeAddress(address)
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", store.ErrValidation, MaxHistoryLimit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset cannot be negative", store.ErrValidation)
	}

	transactions, err := s.ledger.GetPointsHistory(ctx, address, limit, offset)
	if err != nil {
		zap.L().Error("Points history lookup failed", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	records := make([]models.PointsRecord, 0, len(transactions))
	for _, t := range transactions {
		records = append(records, models.PointsRecord{
			Id:        t.Id,
			Type:      t.TransactionType,
			Amount:    t.Amount,
			Balance:   t.BalanceAfter,
			Reference: t.Reference,
			CreatedAt: t.CreatedAt,
		})
	}
	return records, nil
}
