package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moviemeter-go/internal/models"

	"go.uber.org/zap"
)

// GetBalance returns current points for a user (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, address string) (int64, error) {
	zap.L().Debug("Getting balance", zap.String("address", address))

	var balance int64
	err := s.db.QueryRowContext(ctx, queryGetBalance, address).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("address", address), zap.Error(err))
		return 0, upstream("failed to get balance", err)
	}

	zap.L().Debug("Retrieved balance", zap.String("address", address), zap.Int64("balance", balance))
	return balance, nil
}

// GetClaimedRewardIds returns the reward ids a user has redeemed, oldest first
func (s *SubledgerService) GetClaimedRewardIds(ctx context.Context, address string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryGetClaimedRewardIds, address)
	if err != nil {
		zap.L().Error("Failed to get claimed rewards", zap.String("address", address), zap.Error(err))
		return nil, upstream("failed to get claimed rewards", err)
	}
	defer closeRows(rows)

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan claimed reward: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during claimed reward row iteration", zap.Error(err))
		return nil, upstream("error iterating claimed reward rows", err)
	}
	return ids, nil
}

// ReconcileBalance verifies that current balance matches sum of all transactions
func (s *SubledgerService) ReconcileBalance(ctx context.Context, address string) error {
	zap.L().Info("Reconciling balance", zap.String("address", address))

	currentBalance, err := s.GetBalance(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	// Calculate balance from transaction history
	var calculatedBalance int64
	err = s.db.QueryRowContext(ctx, queryReconcileBalance, address).Scan(&calculatedBalance)
	if err != nil {
		return upstream("failed to calculate balance from transactions", err)
	}

	if currentBalance != calculatedBalance {
		zap.L().Error("Balance reconciliation failed",
			zap.String("address", address),
			zap.Int64("current_balance", currentBalance),
			zap.Int64("calculated_balance", calculatedBalance),
			zap.Int64("difference", currentBalance-calculatedBalance))
		return fmt.Errorf("balance mismatch: current=%d, calculated=%d", currentBalance, calculatedBalance)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("address", address),
		zap.Int64("balance", currentBalance))
	return nil
}

// GetPoints returns balance and claimed rewards for a known user
func (s *Service) GetPoints(ctx context.Context, address string) (*models.PointsSummary, error) {
	if _, err := s.GetUser(ctx, address); err != nil {
		return nil, err
	}

	balance, err := s.subledger.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	claimed, err := s.subledger.GetClaimedRewardIds(ctx, address)
	if err != nil {
		return nil, err
	}

	return &models.PointsSummary{
		Address:        address,
		Points:         balance,
		ClaimedRewards: claimed,
	}, nil
}

func (s *Service) ReconcilePoints(ctx context.Context, address string) error {
	return s.subledger.ReconcileBalance(ctx, address)
}
