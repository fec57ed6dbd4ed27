package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordVote stores a vote. An address may vote once per movie.
func (s *Service) RecordVote(ctx context.Context, movieId, address string, voteType bool, at time.Time) (*models.Vote, error) {
	zap.L().Info("Recording vote",
		zap.String("movie_id", movieId),
		zap.String("address", address),
		zap.Bool("vote_type", voteType))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, upstream("failed to begin transaction", err)
	}
	defer rollback(tx)

	if err := ensureUser(ctx, tx, address, at); err != nil {
		return nil, err
	}

	vote := &models.Vote{
		Id:        uuid.New().String(),
		MovieId:   movieId,
		Address:   address,
		VoteType:  voteType,
		Timestamp: at.UTC(),
	}
	_, err = tx.ExecContext(ctx, queryInsertVote, vote.Id, vote.MovieId, vote.Address, vote.VoteType, vote.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Duplicate vote rejected",
				zap.String("movie_id", movieId),
				zap.String("address", address))
			return nil, fmt.Errorf("%w: movie %s", store.ErrDuplicateVote, movieId)
		}
		zap.L().Error("Failed to insert vote", zap.String("movie_id", movieId), zap.Error(err))
		return nil, upstream("unable to insert vote", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, upstream("failed to commit vote", err)
	}

	zap.L().Info("Vote recorded successfully", zap.String("id", vote.Id))
	return vote, nil
}

func (s *Service) GetVotesByMovie(ctx context.Context, movieId string) ([]models.Vote, error) {
	return s.queryVotes(ctx, "movie", queryGetVotesByMovie, movieId)
}

func (s *Service) GetVotesByAddress(ctx context.Context, address string) ([]models.Vote, error) {
	return s.queryVotes(ctx, "address", queryGetVotesByAddress, address)
}

// GetAllVotes scans the full vote log in chronological order.
func (s *Service) GetAllVotes(ctx context.Context) ([]models.Vote, error) {
	return s.queryVotes(ctx, "all", queryGetAllVotes)
}

func (s *Service) queryVotes(ctx context.Context, scope, query string, args ...any) ([]models.Vote, error) {
	zap.L().Debug("Querying votes", zap.String("scope", scope), zap.Any("args", args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to query votes", zap.String("scope", scope), zap.Error(err))
		return nil, upstream("unable to query votes", err)
	}
	defer func(rows *sql.Rows) { closeRows(rows) }(rows)

	var votes []models.Vote
	for rows.Next() {
		var vote models.Vote
		if err := rows.Scan(&vote.Id, &vote.MovieId, &vote.Address, &vote.VoteType, &vote.Timestamp); err != nil {
			zap.L().Error("Failed to scan vote row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan vote row: %w", err)
		}
		votes = append(votes, vote)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during vote row iteration", zap.Error(err))
		return nil, upstream("error iterating vote rows", err)
	}

	zap.L().Debug("Retrieved votes", zap.String("scope", scope), zap.Int("count", len(votes)))
	return votes, nil
}
