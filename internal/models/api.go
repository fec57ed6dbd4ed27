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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StreakSnapshot is the per-user streak state derived from the vote log
type StreakSnapshot struct {
	Address             string          `json:"address"`
	CurrentStreak       int             `json:"currentStreak"`
	LongestStreak       int             `json:"longestStreak"`
	TotalVotes          int             `json:"totalVotes"`
	LastVoteDate        string          `json:"lastVoteDate,omitempty"` // YYYY-MM-DD
	BonusMultiplier     decimal.Decimal `json:"bonusMultiplier"`
	CurrentMilestone    *Milestone      `json:"currentMilestone,omitempty"`
	NextMilestone       *Milestone      `json:"nextMilestone,omitempty"`
	DaysToNextMilestone int             `json:"daysToNextMilestone"`
}

// LeaderboardEntry is one ranked voter
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	Address       string `json:"address"`
	TotalVotes    int    `json:"totalVotes"`
	YesVotes      int    `json:"yesVotes"`
	NoVotes       int    `json:"noVotes"`
	CurrentStreak int    `json:"streak"`
	LongestStreak int    `json:"longestStreak"`
	LastVoteDate  string `json:"lastVoteDate"`
}

// Leaderboard is the full ranking snapshot returned by GET /leaderboard
type Leaderboard struct {
	TopVoters      []LeaderboardEntry `json:"topVoters"`
	LongestStreaks []LeaderboardEntry `json:"longestStreaks"`
	TotalUsers     int                `json:"totalUsers"`
	TotalVotes     int                `json:"totalVotes"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}

// MovieVotes summarizes the votes cast on one movie
type MovieVotes struct {
	MovieId    string `json:"movieId"`
	YesVotes   int    `json:"yesVotes"`
	NoVotes    int    `json:"noVotes"`
	TotalVotes int    `json:"totalVotes"`
	Votes      []Vote `json:"votes"`
}

// PointsSummary is a user's spendable balance and claimed rewards
type PointsSummary struct {
	Address        string   `json:"address"`
	Points         int64    `json:"points"`
	ClaimedRewards []string `json:"claimedRewards"`
}

// PointsRecord is one entry of a user's points history
type PointsRecord struct {
	Id        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteResult is returned after a vote is recorded
type VoteResult struct {
	Vote          Vote           `json:"vote"`
	PointsAwarded int64          `json:"pointsAwarded"`
	Balance       int64          `json:"balance"`
	Streak        StreakSnapshot `json:"streak"`
	Milestone     *Milestone     `json:"milestoneReached,omitempty"`
	// AwardPending is set when the vote was stored but its points were not
	// credited. POST /points with type vote completes the award.
	AwardPending  bool           `json:"awardPending,omitempty"`
}

// AwardResult is returned after points are awarded
type AwardResult struct {
	Address       string `json:"address"`
	Action        string `json:"type"`
	PointsAwarded int64  `json:"pointsAwarded"`
	Balance       int64  `json:"balance"`
}

// ClaimResult is returned after a reward claim succeeds
type ClaimResult struct {
	Address     string          `json:"userId"`
	RewardId    string          `json:"rewardId"`
	PointsCost  int64           `json:"pointsCost"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	Balance     *int64          `json:"balance,omitempty"`
	PayoutId    string          `json:"payoutId,omitempty"`
}

// CastVoteRequest is the body of POST /votes
type CastVoteRequest struct {
	MovieId  string `json:"movieId" validate:"required,max=128"`
	Address  string `json:"address" validate:"required,wallet_address"`
	VoteType *bool  `json:"voteType" validate:"required"`
}

// AwardRequest is the body of POST /points. Type selects which of the
// optional fields must be present.
type AwardRequest struct {
	Address         string `json:"address" validate:"required,wallet_address"`
	Type            string `json:"type" validate:"required,oneof=vote share login referral"`
	MovieId         string `json:"movieId,omitempty" validate:"max=128"`
	Reference       string `json:"reference,omitempty" validate:"max=128"`
	ReferredAddress string `json:"referredAddress,omitempty"`
}

// ClaimRequest is the body of POST /rewards/claim. PointsCost and TokenAmount
// are optional and, when sent, must match the catalog.
type ClaimRequest struct {
	UserId      string           `json:"userId" validate:"required,wallet_address"`
	RewardId    string           `json:"rewardId" validate:"required,max=64"`
	PointsCost  *int64           `json:"pointsCost,omitempty" validate:"omitempty,gte=0"`
	TokenAmount *decimal.Decimal `json:"tokenAmount,omitempty"`
}
