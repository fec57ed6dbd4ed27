package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a wallet that has voted or earned points
type User struct {
	Address     string    `db:"address"`
	FirstSeenAt time.Time `db:"first_seen_at"`
	VoteCount   int       `db:"vote_count"`
}

// Vote represents an immutable yes/no vote on a movie or show
type Vote struct {
	Id        string    `db:"id" json:"id"`
	MovieId   string    `db:"movie_id" json:"movieId"`
	Address   string    `db:"address" json:"address"`
	VoteType  bool      `db:"vote_type" json:"voteType"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

// PointsBalance represents current spendable points (hot data)
type PointsBalance struct {
	UserAddress       string    `db:"user_address"`
	Balance           int64     `db:"balance"`
	LastTransactionId string    `db:"last_transaction_id"`
	Version           int64     `db:"version"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// PointsTransaction represents the immutable points audit trail (cold data)
type PointsTransaction struct {
	Id              string    `db:"id"`
	UserAddress     string    `db:"user_address"`
	TransactionType string    `db:"transaction_type"`
	Amount          int64     `db:"amount"`
	BalanceBefore   int64     `db:"balance_before"`
	BalanceAfter    int64     `db:"balance_after"`
	ExternalId      string    `db:"external_id"`
	Reference       string    `db:"reference"`
	CreatedAt       time.Time `db:"created_at"`
}

// ClaimedReward records a one-time reward redemption
type ClaimedReward struct {
	UserAddress   string          `db:"user_address"`
	RewardId      string          `db:"reward_id"`
	PointsCost    int64           `db:"points_cost"`
	TokenAmount   decimal.Decimal `db:"token_amount"`
	TransactionId string          `db:"transaction_id"`
	ClaimedAt     time.Time       `db:"claimed_at"`
}

// Payout statuses
const (
	PayoutPending   = "pending"
	PayoutSubmitted = "submitted"
	PayoutFailed    = "failed"
)

// Payout sources
const (
	PayoutSourceClaim     = "claim"
	PayoutSourceMilestone = "milestone"
	PayoutSourceManual    = "manual"
)

// Payout is a queued reward-token transfer to a user's wallet
type Payout struct {
	Id          string          `db:"id"`
	UserAddress string          `db:"user_address"`
	Source      string          `db:"source"`
	SourceRef   string          `db:"source_ref"`
	Asset       string          `db:"asset"`
	Amount      decimal.Decimal `db:"amount"`
	Status      string          `db:"status"`
	Attempts    int             `db:"attempts"`
	ActivityId  string          `db:"activity_id"`
	LastError   string          `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}
