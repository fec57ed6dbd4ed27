package formance

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via set_tx_meta()
// so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptPointsAwarded = `vars {
  asset $asset
  number $amount
  account $user_id
  string $action
  string $external_id
  string $address
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "points_awarded")
set_tx_meta("action", $action)
set_tx_meta("external_id", $external_id)
set_tx_meta("address", $address)
`

const numscriptRewardClaimed = `vars {
  asset $asset
  number $amount
  account $user_id
  account $reward_id
  string $reward
  string $address
  string $token_amount
}

send [$asset $amount] (
  source = @users:$user_id
  destination = @rewards:$reward_id
)

set_tx_meta("event_type", "reward_claimed")
set_tx_meta("reward_id", $reward)
set_tx_meta("address", $address)
set_tx_meta("token_amount", $token_amount)
`

// AwardPoints posts the action's points from @world. The external id is the
// transaction reference, so a replay is rejected by the ledger.
func (s *Service) AwardPoints(ctx context.Context, address string, action store.ActionType, externalId string) (*models.PointsTransaction, error) {
	amount, ok := store.PointsFor(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action type %q", store.ErrValidation, action)
	}

	zap.L().Info("Awarding points in Formance",
		zap.String("address", address),
		zap.String("type", string(action)),
		zap.Int64("amount", amount),
		zap.String("external_id", externalId))

	if err := s.ensureVoter(ctx, address); err != nil {
		return nil, err
	}

	postTx := shared.V2PostTransaction{
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptPointsAwarded,
			Vars: map[string]string{
				"asset":       pointsAsset,
				"amount":      strconv.FormatInt(amount, 10),
				"user_id":     accountSegment(address),
				"action":      string(action),
				"external_id": externalId,
				"address":     address,
			},
		},
	}
	if externalId != "" {
		postTx.Reference = strPtr(externalId)
	}

	resp, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Warn("Duplicate external id detected, skipping", zap.String("external_id", externalId))
			return nil, fmt.Errorf("%w: external_id %s already exists", store.ErrDuplicateTransaction, externalId)
		}
		return nil, upstream("error awarding points", err)
	}

	balance, err := s.getBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	tx := resp.V2CreateTransactionResponse.Data
	return &models.PointsTransaction{
		Id:              tx.ID.String(),
		UserAddress:     address,
		TransactionType: string(action),
		Amount:          amount,
		BalanceBefore:   balance - amount,
		BalanceAfter:    balance,
		ExternalId:      externalId,
		Reference:       externalId,
		CreatedAt:       tx.Timestamp,
	}, nil
}

// ClaimReward moves the reward cost from the user to @rewards:<id>. The claim
// reference is unique per user and reward; the user account cannot overdraft.
func (s *Service) ClaimReward(ctx context.Context, params store.ClaimParams) (*models.ClaimedReward, error) {
	if params.PointsCost < 0 {
		return nil, fmt.Errorf("%w: points cost cannot be negative", store.ErrValidation)
	}

	zap.L().Info("Claiming reward in Formance",
		zap.String("address", params.Address),
		zap.String("reward_id", params.RewardId),
		zap.Int64("points_cost", params.PointsCost))

	if _, err := s.getVoter(ctx, params.Address); err != nil {
		return nil, err
	}

	reference := store.ClaimExternalId(params.Address, params.RewardId)
	resp, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(reference),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptRewardClaimed,
				Vars: map[string]string{
					"asset":        pointsAsset,
					"amount":       strconv.FormatInt(params.PointsCost, 10),
					"user_id":      accountSegment(params.Address),
					"reward_id":    accountSegment(params.RewardId),
					"reward":       params.RewardId,
					"address":      params.Address,
					"token_amount": params.TokenAmount.String(),
				},
			},
		},
	})
	if err != nil {
		switch {
		case isConflictError(err):
			zap.L().Warn("Reward already claimed",
				zap.String("address", params.Address),
				zap.String("reward_id", params.RewardId))
			return nil, fmt.Errorf("%w: %s", store.ErrAlreadyClaimed, params.RewardId)
		case isInsufficientFundError(err):
			zap.L().Warn("Rejected claim with insufficient points",
				zap.String("address", params.Address),
				zap.String("reward_id", params.RewardId))
			return nil, fmt.Errorf("%w: reward %s costs %d", store.ErrInsufficientPoints, params.RewardId, params.PointsCost)
		}
		return nil, upstream("error claiming reward", err)
	}

	tx := resp.V2CreateTransactionResponse.Data
	zap.L().Info("Reward claimed in Formance",
		zap.String("address", params.Address),
		zap.String("reward_id", params.RewardId),
		zap.String("tx_id", tx.ID.String()))

	return &models.ClaimedReward{
		UserAddress:   params.Address,
		RewardId:      params.RewardId,
		PointsCost:    params.PointsCost,
		TokenAmount:   params.TokenAmount,
		TransactionId: tx.ID.String(),
		ClaimedAt:     tx.Timestamp,
	}, nil
}

// GetPoints returns the balance and the ids of claimed rewards.
func (s *Service) GetPoints(ctx context.Context, address string) (*models.PointsSummary, error) {
	if _, err := s.getVoter(ctx, address); err != nil {
		return nil, err
	}

	balance, err := s.getBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	claims, err := collectPages(ctx, s.transactionPages(map[string]any{
		"$and": []any{
			map[string]any{"$match": map[string]any{"metadata[event_type]": "reward_claimed"}},
			map[string]any{"$match": map[string]any{"source": userAccount(address)}},
		},
	}, maxPageSize), 0)
	if err != nil {
		return nil, upstream("failed to list claims", err)
	}

	claimed := claimedRewardIds(claims)
	return &models.PointsSummary{
		Address:        address,
		Points:         balance,
		ClaimedRewards: claimed,
	}, nil
}

// GetPointsHistory returns a user's points transactions, newest first.
func (s *Service) GetPointsHistory(ctx context.Context, address string, limit, offset int) ([]models.PointsTransaction, error) {
	wanted := limit + offset
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit must be positive and offset non-negative", store.ErrValidation)
	}

	account := userAccount(address)
	txs, err := collectPages(ctx, s.transactionPages(map[string]any{
		"$or": []any{
			map[string]any{"$match": map[string]any{"source": account}},
			map[string]any{"$match": map[string]any{"destination": account}},
		},
	}, int64(min(wanted, maxPageSize))), wanted)
	if err != nil {
		return nil, upstream("failed to list transactions", err)
	}

	balance, err := s.getBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	history := toPointsHistory(address, balance, txs)
	if offset >= len(history) {
		return nil, nil
	}
	history = history[offset:]
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// ReconcilePoints is a no-op in Formance; balances are consistent by construction.
func (s *Service) ReconcilePoints(ctx context.Context, address string) error {
	zap.L().Info("Reconciliation is a no-op in Formance (consistent by construction)",
		zap.String("address", address))
	return nil
}

// getBalance reads the points balance from the user account volumes.
func (s *Service) getBalance(ctx context.Context, address string) (int64, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: userAccount(address),
		Expand:  strPtr("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, upstream("failed to get account volumes", err)
	}
	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, pointsAsset)
	if bal == nil {
		return 0, nil
	}
	return bal.Int64(), nil
}

// ---------- helpers ----------

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// postingDelta is the signed change a transaction makes to an account.
func postingDelta(account string, postings []shared.V2Posting) int64 {
	var delta int64
	for _, p := range postings {
		if p.Asset != pointsAsset || p.Amount == nil {
			continue
		}
		if p.Destination == account {
			delta += p.Amount.Int64()
		}
		if p.Source == account {
			delta -= p.Amount.Int64()
		}
	}
	return delta
}

// toPointsHistory maps newest-first ledger transactions to points history,
// walking back from the current balance to fill in running balances.
func toPointsHistory(address string, balance int64, txs []shared.V2Transaction) []models.PointsTransaction {
	account := userAccount(address)
	history := make([]models.PointsTransaction, 0, len(txs))
	after := balance
	for _, tx := range txs {
		delta := postingDelta(account, tx.Postings)

		txType := tx.Metadata["action"]
		if tx.Metadata["event_type"] == "reward_claimed" {
			txType = string(store.ActionClaim)
		}

		ref := ""
		if tx.Reference != nil {
			ref = *tx.Reference
		}

		history = append(history, models.PointsTransaction{
			Id:              tx.ID.String(),
			UserAddress:     address,
			TransactionType: txType,
			Amount:          delta,
			BalanceBefore:   after - delta,
			BalanceAfter:    after,
			ExternalId:      ref,
			Reference:       ref,
			CreatedAt:       tx.Timestamp,
		})
		after -= delta
	}
	return history
}

// maxPageSize is the largest page the ledger API serves.
const maxPageSize = 1000

// transactionPage fetches one page of transactions; a nil cursor is the first page.
type transactionPage func(ctx context.Context, cursor *string) (*shared.V2TransactionsCursorResponseCursor, error)

func (s *Service) transactionPages(filter map[string]any, pageSize int64) transactionPage {
	return func(ctx context.Context, cursor *string) (*shared.V2TransactionsCursorResponseCursor, error) {
		resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
			Ledger:      s.ledger,
			Cursor:      cursor,
			PageSize:    ptrInt64(pageSize),
			RequestBody: filter,
		})
		if err != nil {
			return nil, err
		}
		return &resp.V2TransactionsCursorResponse.Cursor, nil
	}
}

// collectPages follows the cursor until the last page, or until limit
// transactions are collected when limit is positive.
func collectPages(ctx context.Context, fetch transactionPage, limit int) ([]shared.V2Transaction, error) {
	var (
		all    []shared.V2Transaction
		cursor *string
	)
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if !page.HasMore || page.Next == nil {
			return all, nil
		}
		cursor = page.Next
	}
}

// claimedRewardIds returns reward ids oldest first, as transactions are listed newest first.
func claimedRewardIds(txs []shared.V2Transaction) []string {
	ids := []string{}
	for i := len(txs) - 1; i >= 0; i-- {
		id := txs[i].Metadata["reward_id"]
		if id == "" && txs[i].Reference != nil {
			id = rewardFromReference(*txs[i].Reference)
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// rewardFromReference extracts the reward id from a claim reference.
func rewardFromReference(reference string) string {
	parts := strings.SplitN(reference, ":", 3)
	if len(parts) != 3 || parts[0] != "claim" {
		return ""
	}
	return parts[2]
}
