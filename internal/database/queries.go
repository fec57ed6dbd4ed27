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

const (
	// User queries
	queryEnsureUser = `
		INSERT OR IGNORE INTO users (address, first_seen_at) VALUES (?, ?)`

	queryGetUser = `
		SELECT u.address, u.first_seen_at,
		       (SELECT COUNT(*) FROM votes v WHERE v.address = u.address) AS vote_count
		FROM users u
		WHERE u.address = ?`

	queryUserExists = `
		SELECT address FROM users WHERE address = ?`

	queryGetUsers = `
		SELECT u.address, u.first_seen_at,
		       (SELECT COUNT(*) FROM votes v WHERE v.address = u.address) AS vote_count
		FROM users u
		ORDER BY u.first_seen_at, u.address`

	// Vote queries
	queryInsertVote = `
		INSERT INTO votes (id, movie_id, address, vote_type, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetVotesByMovie = `
		SELECT id, movie_id, address, vote_type, created_at
		FROM votes
		WHERE movie_id = ?
		ORDER BY created_at, rowid`

	queryGetVotesByAddress = `
		SELECT id, movie_id, address, vote_type, created_at
		FROM votes
		WHERE address = ?
		ORDER BY created_at, rowid`

	queryGetAllVotes = `
		SELECT id, movie_id, address, vote_type, created_at
		FROM votes
		ORDER BY created_at, rowid`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM point_balances
		WHERE user_address = ?`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(amount), 0) as calculated_balance
		FROM point_transactions
		WHERE user_address = ?`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM point_transactions WHERE external_id = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM point_balances
		WHERE user_address = ?`

	queryInsertAccountBalance = `
		INSERT INTO point_balances (id, user_address, balance, version)
		VALUES (?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO point_transactions (
			id, user_address, transaction_type, amount, balance_before, balance_after,
			external_id, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE point_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_address = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_address, transaction_type, amount, balance_before, balance_after,
		       COALESCE(external_id, ''), COALESCE(reference, ''), created_at
		FROM point_transactions
		WHERE user_address = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Claim queries
	queryCheckClaimed = `
		SELECT transaction_id FROM claimed_rewards WHERE user_address = ? AND reward_id = ?`

	queryInsertClaim = `
		INSERT INTO claimed_rewards (user_address, reward_id, points_cost, token_amount, transaction_id, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetClaimedRewardIds = `
		SELECT reward_id
		FROM claimed_rewards
		WHERE user_address = ?
		ORDER BY claimed_at, reward_id`

	// Payout queries
	queryInsertPayout = `
		INSERT INTO payouts (id, user_address, source, source_ref, asset, amount, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)`

	queryGetPayoutBySourceRef = `
		SELECT id, user_address, source, source_ref, asset, amount, status, attempts,
		       COALESCE(activity_id, ''), COALESCE(last_error, ''), created_at, updated_at
		FROM payouts
		WHERE source_ref = ?`

	queryGetPendingPayouts = `
		SELECT id, user_address, source, source_ref, asset, amount, status, attempts,
		       COALESCE(activity_id, ''), COALESCE(last_error, ''), created_at, updated_at
		FROM payouts
		WHERE status = 'pending'
		ORDER BY created_at, rowid
		LIMIT ?`

	queryMarkPayoutSubmitted = `
		UPDATE payouts
		SET status = 'submitted', activity_id = ?, attempts = attempts + 1, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryMarkPayoutAttemptFailed = `
		UPDATE payouts
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
		    updated_at = ?
		WHERE id = ? AND status = 'pending'`
)
