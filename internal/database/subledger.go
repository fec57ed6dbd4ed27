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
	"database/sql"
	"time"
)

// SubledgerService handles points ledger operations
type SubledgerService struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db:  db,
		now: time.Now,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Point Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS point_balances (
		id TEXT PRIMARY KEY,
		user_address TEXT NOT NULL UNIQUE,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_transaction_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Point Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS point_transactions (
		id TEXT PRIMARY KEY,
		user_address TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		external_id TEXT,
		reference TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_transactions_user ON point_transactions(user_address, created_at);
	-- Idempotency keys are unique when present
	CREATE UNIQUE INDEX IF NOT EXISTS idx_point_transactions_external_id
		ON point_transactions(external_id) WHERE external_id IS NOT NULL AND external_id != '';

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount INTEGER DEFAULT 0,
		credit_amount INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	-- Claimed Rewards (one claim per user and reward)
	CREATE TABLE IF NOT EXISTS claimed_rewards (
		user_address TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		points_cost INTEGER NOT NULL,
		token_amount TEXT NOT NULL DEFAULT '0',
		transaction_id TEXT NOT NULL,
		claimed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_address, reward_id)
	);

	-- Payouts queued for on-chain delivery
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		user_address TEXT NOT NULL,
		source TEXT NOT NULL,
		source_ref TEXT NOT NULL UNIQUE,
		asset TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		activity_id TEXT,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
