package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

const leaderboardFlightKey = "leaderboard"

// CastVote records a vote, credits the vote award and reports the resulting streak.
// Reaching a streak milestone queues its token reward.
func (s *Service) CastVote(ctx context.Context, req models.CastVoteRequest) (*models.VoteResult, error) {
	req.Address = NormalizeAddress(req.Address)
	req.MovieId = strings.TrimSpace(req.MovieId)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.Address)
	defer unlock()

	history, err := s.votes.GetVotesByAddress(ctx, req.Address)
	if err != nil {
		zap.L().Error("Vote history lookup failed", zap.String("address", req.Address), zap.Error(err))
		return nil, err
	}
	now := s.now()
	timestamps := voteTimestamps(history)
	before := s.calc.Calculate(req.Address, timestamps, now)

	vote, err := s.votes.RecordVote(ctx, req.MovieId, req.Address, *req.VoteType, now)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateVote) {
			zap.L().Warn("Duplicate vote rejected",
				zap.String("address", req.Address),
				zap.String("movie_id", req.MovieId))
		} else {
			zap.L().Error("Vote recording failed",
				zap.String("address", req.Address),
				zap.String("movie_id", req.MovieId),
				zap.Error(err))
		}
		return nil, err
	}
	s.metrics.ObserveVote(vote.VoteType)
	s.invalidateLeaderboard(ctx)

	after := s.calc.Calculate(req.Address, append(timestamps, vote.Timestamp), now)
	result := &models.VoteResult{Vote: *vote, Streak: after}

	// The vote is stored at this point, so an award failure no longer fails the
	// request. A pending award is retried through AwardPoints with type vote,
	// which uses the same idempotency key.
	award, err := s.ledger.AwardPoints(ctx, req.Address, store.ActionVote, store.VoteExternalId(req.Address, req.MovieId))
	switch {
	case err == nil:
		s.metrics.ObservePoints(string(store.ActionVote), award.Amount)
		result.PointsAwarded = award.Amount
		result.Balance = award.BalanceAfter
	case errors.Is(err, store.ErrDuplicateTransaction):
		zap.L().Warn("Vote award already credited",
			zap.String("address", req.Address),
			zap.String("movie_id", req.MovieId))
		result.Balance = s.currentBalance(ctx, req.Address)
	default:
		zap.L().Error("Vote award failed",
			zap.String("address", req.Address),
			zap.String("movie_id", req.MovieId),
			zap.Error(err))
		result.AwardPending = true
		result.Balance = s.currentBalance(ctx, req.Address)
	}

	if m := s.calc.ReachedMilestone(before.CurrentStreak, after.CurrentStreak); m != nil {
		result.Milestone = m
		s.queueMilestonePayout(ctx, req.Address, *m)
	}

	zap.L().Info("Vote cast",
		zap.String("address", req.Address),
		zap.String("movie_id", req.MovieId),
		zap.Bool("vote_type", vote.VoteType),
		zap.Int("current_streak", after.CurrentStreak),
		zap.Int64("balance", result.Balance),
		zap.Bool("award_pending", result.AwardPending))
	return result, nil
}

// currentBalance is best effort; a failed read reports 0.
func (s *Service) currentBalance(ctx context.Context, address string) int64 {
	summary, err := s.ledger.GetPoints(ctx, address)
	if err != nil {
		zap.L().Warn("Balance lookup after vote failed", zap.String("address", address), zap.Error(err))
		return 0
	}
	return summary.Points
}

// queueMilestonePayout enqueues the tier's token reward. The source ref makes
// each tier pay out at most once per address.
func (s *Service) queueMilestonePayout(ctx context.Context, address string, m models.Milestone) {
	zap.L().Info("Streak milestone reached",
		zap.String("address", address),
		zap.String("milestone", m.Name),
		zap.Int("streak_days", m.StreakDays))

	if s.payouts == nil || !m.Reward.IsPositive() {
		return
	}
	payout, err := s.payouts.EnqueuePayout(ctx, store.EnqueuePayoutParams{
		Address:   address,
		Source:    models.PayoutSourceMilestone,
		SourceRef: fmt.Sprintf("milestone:%s:%d", address, m.StreakDays),
		Asset:     s.payoutAsset,
		Amount:    m.Reward,
	})
	if err != nil {
		zap.L().Error("Failed to queue milestone payout",
			zap.String("address", address),
			zap.Int("streak_days", m.StreakDays),
			zap.Error(err))
		return
	}
	zap.L().Info("Milestone payout queued",
		zap.String("payout_id", payout.Id),
		zap.String("address", address),
		zap.String("amount", payout.Amount.String()))
}

// GetStreak computes the streak snapshot for one address from its votes.
func (s *Service) GetStreak(ctx context.Context, address string) (*models.StreakSnapshot, error) {
	address = NormalizeAddress(address)
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	votes, err := s.votes.GetVotesByAddress(ctx, address)
	if err != nil {
		zap.L().Error("Streak lookup failed", zap.String("address", address), zap.Error(err))
		return nil, err
	}
	snapshot := s.calc.Calculate(address, voteTimestamps(votes), s.now())
	return &snapshot, nil
}

// GetLeaderboard returns the ranking snapshot, served from cache when possible.
// Concurrent misses share one computation.
func (s *Service) GetLeaderboard(ctx context.Context) (*models.Leaderboard, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		logCacheError("get", err)
	}
	if cached != nil {
		s.metrics.ObserveCache(true)
		return cached, nil
	}
	s.metrics.ObserveCache(false)

	v, err, shared := s.group.Do(leaderboardFlightKey, func() (any, error) {
		votes, err := s.votes.GetAllVotes(ctx)
		if err != nil {
			return nil, err
		}
		snapshot := s.board.Snapshot(votes, s.now())
		if err := s.cache.Set(ctx, &snapshot); err != nil {
			logCacheError("set", err)
		}
		return &snapshot, nil
	})
	if err != nil {
		zap.L().Error("Leaderboard aggregation failed", zap.Error(err))
		return nil, err
	}

	snapshot := v.(*models.Leaderboard)
	zap.L().Debug("Leaderboard computed",
		zap.Int("total_users", snapshot.TotalUsers),
		zap.Int("total_votes", snapshot.TotalVotes),
		zap.Bool("shared", shared))
	return snapshot, nil
}

// GetMovieVotes tallies the votes cast on one movie. A movie nobody voted on has empty totals.
func (s *Service) GetMovieVotes(ctx context.Context, movieId string) (*models.MovieVotes, error) {
	movieId = strings.TrimSpace(movieId)
	if movieId == "" || len(movieId) > 128 {
		return nil, fmt.Errorf("%w: movieId must be 1-128 characters", store.ErrValidation)
	}

	votes, err := s.votes.GetVotesByMovie(ctx, movieId)
	if err != nil {
		zap.L().Error("Movie vote lookup failed", zap.String("movie_id", movieId), zap.Error(err))
		return nil, err
	}

	result := &models.MovieVotes{MovieId: movieId, Votes: make([]models.Vote, 0, len(votes))}
	for _, v := range votes {
		if v.VoteType {
			result.YesVotes++
		} else {
			result.NoVotes++
		}
		result.Votes = append(result.Votes, v)
	}
	result.TotalVotes = len(votes)
	return result, nil
}

func voteTimestamps(votes []models.Vote) []time.Time {
	timestamps := make([]time.Time, len(votes), len(votes)+1)
	for i, v := range votes {
		timestamps[i] = v.Timestamp
	}
	return timestamps
}

func logCacheError(op string, err error) {
	zap.L().Warn("Leaderboard cache unavailable", zap.String("op", op), zap.Error(err))
}
