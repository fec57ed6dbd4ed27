/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

// ClaimReward debits the reward cost and records the claim in one transaction.
func (s *SubledgerService) ClaimReward(ctx context.Context, params store.ClaimParams) (*models.ClaimedReward, error) {
	if params.PointsCost < 0 {
		return nil, fmt.Errorf("%w: points cost cannot be negative", store.ErrValidation)
	}

	zap.L().Info("Claiming reward",
		zap.String("address", params.Address),
		zap.String("reward_id", params.RewardId),
		zap.Int64("points_cost", params.PointsCost))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, upstream("failed to begin transaction", err)
	}
	defer rollback(tx)

	var address string
	if err := tx.QueryRowContext(ctx, queryUserExists, params.Address).Scan(&address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, params.Address)
		}
		return nil, upstream("failed to look up user", err)
	}

	var existingTxId string
	err = tx.QueryRowContext(ctx, queryCheckClaimed, params.Address, params.RewardId).Scan(&existingTxId)
	if err == nil {
		zap.L().Warn("Reward already claimed",
			zap.String("address", params.Address),
			zap.String("reward_id", params.RewardId),
			zap.String("transaction_id", existingTxId))
		return nil, fmt.Errorf("%w: %s", store.ErrAlreadyClaimed, params.RewardId)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, upstream("failed to check claimed rewards", err)
	}

	transaction, err := s.applyTransaction(ctx, tx, ProcessTransactionParams{
		UserAddress:     params.Address,
		TransactionType: string(store.ActionClaim),
		Amount:          -params.PointsCost,
		ExternalId:      store.ClaimExternalId(params.Address, params.RewardId),
		Reference:       params.RewardId,
	})
	if err != nil {
		// The claim key is only ever written together with the claim row.
		if errors.Is(err, store.ErrDuplicateTransaction) {
			return nil, fmt.Errorf("%w: %s", store.ErrAlreadyClaimed, params.RewardId)
		}
		return nil, err
	}

	claim := &models.ClaimedReward{
		UserAddress:   params.Address,
		RewardId:      params.RewardId,
		PointsCost:    params.PointsCost,
		TokenAmount:   params.TokenAmount,
		TransactionId: transaction.Id,
		ClaimedAt:     transaction.CreatedAt,
	}
	_, err = tx.ExecContext(ctx, queryInsertClaim,
		claim.UserAddress, claim.RewardId, claim.PointsCost, claim.TokenAmount.String(), claim.TransactionId, claim.ClaimedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrAlreadyClaimed, params.RewardId)
		}
		return nil, upstream("failed to record claim", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, upstream("failed to commit claim", err)
	}

	zap.L().Info("Reward claimed successfully",
		zap.String("address", params.Address),
		zap.String("reward_id", params.RewardId),
		zap.Int64("balance", transaction.BalanceAfter))
	return claim, nil
}

func (s *Service) ClaimReward(ctx context.Context, params store.ClaimParams) (*models.ClaimedReward, error) {
	return s.subledger.ClaimReward(ctx, params)
}
