package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.Address, &u.FirstSeenAt, &u.VoteCount)
	return u, err
}

// GetUsers lists every known wallet in first-seen order with its vote count.
func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, upstream("unable to query users", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("error iterating user rows", err)
	}

	zap.L().Debug("Loaded users", zap.Int("count", len(users)))
	return users, nil
}

// GetUser returns store.ErrNotFound for a wallet that has never voted or earned points.
func (s *Service) GetUser(ctx context.Context, address string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, queryGetUser, address))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, address)
	case err != nil:
		zap.L().Error("Failed to query user", zap.String("address", address), zap.Error(err))
		return nil, upstream("unable to query user", err)
	}
	return &u, nil
}

// ensureUser registers an address on first activity. It is a no-op for known users.
func ensureUser(ctx context.Context, tx *sql.Tx, address string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, queryEnsureUser, address, now.UTC()); err != nil {
		return upstream("unable to register user", err)
	}
	return nil
}
