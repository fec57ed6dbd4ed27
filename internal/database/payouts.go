package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	var p models.Payout
	var amountStr string
	err := row.Scan(&p.Id, &p.UserAddress, &p.Source, &p.SourceRef, &p.Asset, &amountStr,
		&p.Status, &p.Attempts, &p.ActivityId, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout amount '%s': %w", amountStr, err)
	}
	return &p, nil
}

// EnqueuePayout queues a token payout. Enqueuing the same source ref twice returns the existing payout.
func (s *Service) EnqueuePayout(ctx context.Context, params store.EnqueuePayoutParams) (*models.Payout, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payout amount must be positive", store.ErrValidation)
	}

	now := s.subledger.now().UTC()
	payoutId := uuid.New().String()

	_, err := s.db.ExecContext(ctx, queryInsertPayout,
		payoutId, params.Address, params.Source, params.SourceRef, params.Asset, params.Amount.String(), now, now)
	if err != nil && !isUniqueViolation(err) {
		zap.L().Error("Failed to enqueue payout", zap.String("source_ref", params.SourceRef), zap.Error(err))
		return nil, upstream("failed to enqueue payout", err)
	}
	if err != nil {
		zap.L().Debug("Payout already queued", zap.String("source_ref", params.SourceRef))
	}

	payout, err := scanPayout(s.db.QueryRowContext(ctx, queryGetPayoutBySourceRef, params.SourceRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout %s", store.ErrNotFound, params.SourceRef)
		}
		return nil, upstream("failed to read payout", err)
	}

	zap.L().Info("Payout queued",
		zap.String("payout_id", payout.Id),
		zap.String("address", payout.UserAddress),
		zap.String("source_ref", payout.SourceRef),
		zap.String("amount", payout.Amount.String()),
		zap.String("asset", payout.Asset))
	return payout, nil
}

func (s *Service) GetPendingPayouts(ctx context.Context, limit int) ([]models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPendingPayouts, limit)
	if err != nil {
		return nil, upstream("failed to query pending payouts", err)
	}
	defer closeRows(rows)

	var payouts []models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, upstream("error iterating payout rows", err)
	}
	return payouts, nil
}

func (s *Service) MarkPayoutSubmitted(ctx context.Context, payoutId, activityId string) error {
	return s.updatePayout(ctx, "submitted", queryMarkPayoutSubmitted, activityId, s.subledger.now().UTC(), payoutId)
}

// MarkPayoutAttemptFailed records a failed attempt and fails the payout once maxAttempts is reached.
func (s *Service) MarkPayoutAttemptFailed(ctx context.Context, payoutId, lastError string, maxAttempts int) error {
	return s.updatePayout(ctx, "attempt_failed", queryMarkPayoutAttemptFailed, lastError, maxAttempts, s.subledger.now().UTC(), payoutId)
}

func (s *Service) updatePayout(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return upstream(fmt.Sprintf("failed to mark payout %s", op), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return upstream("failed to check rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: no pending payout %v", store.ErrNotFound, args[len(args)-1])
	}
	return nil
}
