package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moviemeter-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrAlreadyClaimed         = errors.New("reward already claimed")
	ErrValidation             = errors.New("validation failed")
	ErrUpstreamUnavailable    = errors.New("data store unavailable")
	ErrDuplicateVote          = errors.New("address already voted on this movie")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ActionType is a points-earning action.
type ActionType string

const (
	ActionVote     ActionType = "vote"
	ActionShare    ActionType = "share"
	ActionLogin    ActionType = "login"
	ActionReferral ActionType = "referral"

	// ActionClaim is recorded on the audit trail for reward redemptions.
	ActionClaim ActionType = "claim"
)

var actionPoints = map[ActionType]int64{
	ActionVote:     10,
	ActionShare:    25,
	ActionLogin:    5,
	ActionReferral: 50,
}

// PointsFor returns the fixed award for an action and whether the action earns points.
func PointsFor(action ActionType) (int64, bool) {
	p, ok := actionPoints[action]
	return p, ok
}

// Idempotency keys for ledger entries. A key is written at most once per ledger.

func VoteExternalId(address, movieId string) string {
	return fmt.Sprintf("vote:%s:%s", address, movieId)
}

// LoginExternalId allows one login award per calendar day (YYYY-MM-DD).
func LoginExternalId(address, day string) string {
	return fmt.Sprintf("login:%s:%s", address, day)
}

func ShareExternalId(address, reference string) string {
	return fmt.Sprintf("share:%s:%s", address, reference)
}

// ReferralExternalId is keyed by the referred address so a wallet is only ever referred once.
func ReferralExternalId(referredAddress string) string {
	return fmt.Sprintf("referral:%s", referredAddress)
}

func ClaimExternalId(address, rewardId string) string {
	return fmt.Sprintf("claim:%s:%s", address, rewardId)
}

// ClaimParams contains the parameters for redeeming a reward.
type ClaimParams struct {
	Address     string
	RewardId    string
	PointsCost  int64
	TokenAmount decimal.Decimal
}

// EnqueuePayoutParams contains the parameters for queueing a token payout.
type EnqueuePayoutParams struct {
	Address   string
	Source    string
	SourceRef string
	Asset     string
	Amount    decimal.Decimal
}

// VoteStore persists vote records.
type VoteStore interface {
	// RecordVote stores a vote cast at the given instant. A repeat vote on the same movie is ErrDuplicateVote.
	RecordVote(ctx context.Context, movieId, address string, voteType bool, at time.Time) (*models.Vote, error)
	GetVotesByMovie(ctx context.Context, movieId string) ([]models.Vote, error)
	GetVotesByAddress(ctx context.Context, address string) ([]models.Vote, error)
	GetAllVotes(ctx context.Context) ([]models.Vote, error)
}

// PointsLedger defines the contract every points backend (SQLite, Formance, ...) must satisfy.
type PointsLedger interface {
	// AwardPoints credits the fixed amount for action. externalId makes the award idempotent.
	AwardPoints(ctx context.Context, address string, action ActionType, externalId string) (*models.PointsTransaction, error)
	ClaimReward(ctx context.Context, params ClaimParams) (*models.ClaimedReward, error)
	GetPoints(ctx context.Context, address string) (*models.PointsSummary, error)
	GetPointsHistory(ctx context.Context, address string, limit, offset int) ([]models.PointsTransaction, error)
	ReconcilePoints(ctx context.Context, address string) error
	Close()
}

// PayoutQueue holds reward-token payouts until they are submitted on-chain.
type PayoutQueue interface {
	EnqueuePayout(ctx context.Context, params EnqueuePayoutParams) (*models.Payout, error)
	GetPendingPayouts(ctx context.Context, limit int) ([]models.Payout, error)
	MarkPayoutSubmitted(ctx context.Context, payoutId, activityId string) error
	MarkPayoutAttemptFailed(ctx context.Context, payoutId, lastError string, maxAttempts int) error
}
