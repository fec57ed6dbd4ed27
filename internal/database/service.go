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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy the store contracts.
var (
	_ store.VoteStore    = (*Service)(nil)
	_ store.PointsLedger = (*Service)(nil)
	_ store.PayoutQueue  = (*Service)(nil)
)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	// _txlock=immediate takes the write lock at BEGIN so read-check-update
	// sequences on balances are serialized across connections.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceWithDB(db)
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, err
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db, subledger: NewSubledgerService(db)}
}

// InitSchema creates the vote, user, points and payout tables.
func (s *Service) InitSchema() error {
	if err := s.initSchema(); err != nil {
		return fmt.Errorf("unable to initialize schema: %w", err)
	}
	if err := s.subledger.InitSchema(); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping reports whether the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return upstream("ping database", err)
	}
	return nil
}

// Stats returns connection pool statistics.
func (s *Service) Stats() sql.DBStats {
	return s.db.Stats()
}

func (s *Service) initSchema() error {
	schema := `
	-- Create users table, keyed by lowercase wallet address
	CREATE TABLE IF NOT EXISTS users (
		address TEXT PRIMARY KEY,
		first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Create votes table (append-only)
	CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		movie_id TEXT NOT NULL,
		address TEXT NOT NULL REFERENCES users(address),
		vote_type BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(movie_id, address)
	);

	-- Create index for per-user streak lookups
	CREATE INDEX IF NOT EXISTS idx_votes_address ON votes(address, created_at);
	-- Create index for per-movie tallies
	CREATE INDEX IF NOT EXISTS idx_votes_movie ON votes(movie_id);
	-- Create index on created_at for full scans in order
	CREATE INDEX IF NOT EXISTS idx_votes_created_at ON votes(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// upstream marks a storage failure as ErrUpstreamUnavailable while keeping the cause.
func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrUpstreamUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}
