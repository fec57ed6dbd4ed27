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

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"moviemeter-go/internal/common"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

type pointsStats struct {
	totalUsers      int
	usersWithPoints int
	totalPoints     int64
	totalClaims     int
	mismatches      int
}

func printHistory(history []models.PointsTransaction) {
	for i, t := range history {
		isLast := i == len(history)-1
		fmt.Printf("%s %-9s %+6d -> %6d (tx: %s, ref: %s, at: %s)\n",
			common.BoxPrefix(isLast),
			t.TransactionType,
			t.Amount,
			t.BalanceAfter,
			common.ShortId(t.Id),
			t.Reference,
			t.CreatedAt.Format(common.TimestampLayout))
	}
}

func printUserHeader(user models.User, summary *models.PointsSummary) {
	claimed := "none"
	if len(summary.ClaimedRewards) > 0 {
		claimed = strings.Join(summary.ClaimedRewards, ", ")
	}
	fmt.Printf("\n┌─ User: %s\n", user.Address)
	fmt.Printf("│  First seen: %s\n", user.FirstSeenAt.Format(common.TimestampLayout))
	fmt.Printf("│  Votes: %d\n", user.VoteCount)
	fmt.Printf("│  Points: %d\n", summary.Points)
	fmt.Printf("│  Claimed: %s\n", claimed)
}

func processUser(ctx context.Context, user models.User, ledger store.PointsLedger, historyLimit int, reconcile bool, stats *pointsStats) error {
	summary, err := ledger.GetPoints(ctx, user.Address)
	if err != nil {
		return fmt.Errorf("failed to get points: %w", err)
	}

	printUserHeader(user, summary)
	stats.totalPoints += summary.Points
	stats.totalClaims += len(summary.ClaimedRewards)
	if summary.Points > 0 {
		stats.usersWithPoints++
	}

	if reconcile {
		if err := ledger.ReconcilePoints(ctx, user.Address); err != nil {
			stats.mismatches++
			fmt.Printf("│  Reconcile: FAILED (%v)\n", err)
		} else {
			fmt.Println("│  Reconcile: ok")
		}
	}

	if historyLimit > 0 {
		history, err := ledger.GetPointsHistory(ctx, user.Address, historyLimit, 0)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		if len(history) > 0 {
			common.PrintBoxSeparator(78)
			printHistory(history)
		}
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	addressFlag := flag.String("address", "", "Filter by wallet address (optional)")
	historyFlag := flag.Int("history", 0, "Print the latest N points transactions per user")
	reconcileFlag := flag.Bool("reconcile", false, "Verify each balance against its transaction trail")
	flag.Parse()

	logger.Info("Starting points query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	ledger, err := common.InitializeLedger(ctx, cfg, dbService)
	if err != nil {
		logger.Fatal("Failed to initialize points ledger", zap.Error(err))
	}

	users, err := common.SelectUsers(ctx, dbService, *addressFlag)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER POINTS REPORT", common.DefaultWidth)

	stats := pointsStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := processUser(ctx, user, ledger, *historyFlag, *reconcileFlag, &stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("address", user.Address),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold %d points, %d rewards claimed",
		stats.usersWithPoints, stats.totalUsers, stats.totalPoints, stats.totalClaims)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d reconciliation failures", stats.mismatches)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Points query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_points", stats.usersWithPoints),
		zap.Int64("total_points", stats.totalPoints))
}
