package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcessTransactionParams contains the parameters for processing a points transaction
type ProcessTransactionParams struct {
	UserAddress     string
	TransactionType string
	Amount          int64
	ExternalId      string
	Reference       string
}

// processTransaction atomically updates the balance and records the
// transaction. register adds the user on first activity.
func (s *SubledgerService) processTransaction(ctx context.Context, params ProcessTransactionParams, register bool) (*models.PointsTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, upstream("failed to begin transaction", err)
	}
	defer rollback(tx)

	if register {
		if err := ensureUser(ctx, tx, params.UserAddress, s.now()); err != nil {
			return nil, err
		}
	}

	transaction, err := s.applyTransaction(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, upstream("failed to commit transaction", err)
	}
	return transaction, nil
}

// applyTransaction moves a balance inside an open transaction. The caller commits.
func (s *SubledgerService) applyTransaction(ctx context.Context, tx *sql.Tx, params ProcessTransactionParams) (*models.PointsTransaction, error) {
	zap.L().Info("Processing points transaction",
		zap.String("address", params.UserAddress),
		zap.String("type", params.TransactionType),
		zap.Int64("amount", params.Amount),
		zap.String("external_id", params.ExternalId))

	// Check for duplicate external id
	if params.ExternalId != "" {
		var existingTxId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.ExternalId).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate external id detected, skipping",
				zap.String("external_id", params.ExternalId),
				zap.String("existing_transaction_id", existingTxId))
			return nil, fmt.Errorf("%w: external_id %s already exists", store.ErrDuplicateTransaction, params.ExternalId)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, upstream("failed to check for duplicate transaction", err)
		}
	}

	var accountId string
	var currentBalance, version int64

	err := tx.QueryRowContext(ctx, queryGetAccountBalance, params.UserAddress).Scan(&accountId, &currentBalance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = 0
		version = 1

		if _, err = tx.ExecContext(ctx, queryInsertAccountBalance, accountId, params.UserAddress, 0, 1); err != nil {
			return nil, upstream("failed to create points balance", err)
		}
	} else if err != nil {
		return nil, upstream("failed to get current balance", err)
	}

	newBalance := currentBalance + params.Amount
	if newBalance < 0 {
		zap.L().Warn("Rejected transaction with insufficient points",
			zap.String("address", params.UserAddress),
			zap.Int64("balance", currentBalance),
			zap.Int64("amount", params.Amount))
		return nil, fmt.Errorf("%w: balance %d, required %d", store.ErrInsufficientPoints, currentBalance, -params.Amount)
	}

	transaction := &models.PointsTransaction{
		Id:              uuid.New().String(),
		UserAddress:     params.UserAddress,
		TransactionType: params.TransactionType,
		Amount:          params.Amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		ExternalId:      params.ExternalId,
		Reference:       params.Reference,
		CreatedAt:       s.now().UTC(),
	}

	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		transaction.Id, transaction.UserAddress, transaction.TransactionType,
		transaction.Amount, transaction.BalanceBefore, transaction.BalanceAfter,
		nullIfEmpty(transaction.ExternalId), nullIfEmpty(transaction.Reference), transaction.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: external_id %s already exists", store.ErrDuplicateTransaction, params.ExternalId)
		}
		return nil, upstream("failed to insert transaction", err)
	}

	// Update balance (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance, transaction.Id, params.UserAddress, version)
	if err != nil {
		return nil, upstream("failed to update balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, upstream("failed to check rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, upstream("failed to add journal entries", err)
	}

	zap.L().Info("Points transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("address", params.UserAddress),
		zap.Int64("old_balance", currentBalance),
		zap.Int64("new_balance", newBalance))

	return transaction, nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  int64
	creditAmount int64
}

// addJournalEntries creates double-entry bookkeeping entries
func addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.PointsTransaction) error {
	// Awards: the issuance account funds the user's points.
	// Claims: the user's points move to the redemption account.
	userAccount := fmt.Sprintf("user_points_%s", transaction.UserAddress)

	var entries []journalEntry
	if transaction.Amount >= 0 {
		entries = []journalEntry{
			{"system_issuance", fmt.Sprintf("points_%s", transaction.TransactionType), transaction.Amount, 0},
			{"user_points", userAccount, 0, transaction.Amount},
		}
	} else {
		entries = []journalEntry{
			{"user_points", userAccount, -transaction.Amount, 0},
			{"system_redemption", "points_redeemed", 0, -transaction.Amount},
		}
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId, entry.debitAmount, entry.creditAmount)
		if err != nil {
			return err
		}
	}

	return nil
}

// AwardPoints credits the fixed amount for an action, registering the user if needed.
func (s *SubledgerService) AwardPoints(ctx context.Context, address string, action store.ActionType, externalId string) (*models.PointsTransaction, error) {
	amount, ok := store.PointsFor(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action type %q", store.ErrValidation, action)
	}

	return s.processTransaction(ctx, ProcessTransactionParams{
		UserAddress:     address,
		TransactionType: string(action),
		Amount:          amount,
		ExternalId:      externalId,
		Reference:       externalId,
	}, true)
}

// GetTransactionHistory returns paginated points history for a user, newest first
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, address string, limit, offset int) ([]models.PointsTransaction, error) {
	zap.L().Debug("Getting points history",
		zap.String("address", address),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, address, limit, offset)
	if err != nil {
		return nil, upstream("failed to get points history", err)
	}
	defer closeRows(rows)

	var transactions []models.PointsTransaction
	for rows.Next() {
		var t models.PointsTransaction
		err := rows.Scan(&t.Id, &t.UserAddress, &t.TransactionType,
			&t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.ExternalId, &t.Reference, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, upstream("error iterating transaction rows", err)
	}

	return transactions, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Service wrappers

func (s *Service) AwardPoints(ctx context.Context, address string, action store.ActionType, externalId string) (*models.PointsTransaction, error) {
	return s.subledger.AwardPoints(ctx, address, action, externalId)
}

func (s *Service) GetPointsHistory(ctx context.Context, address string, limit, offset int) ([]models.PointsTransaction, error) {
	return s.subledger.GetTransactionHistory(ctx, address, limit, offset)
}

// setClock overrides the timestamp source for audit rows.
func (s *Service) setClock(now func() time.Time) {
	s.subledger.now = now
}
