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
	"fmt"

	"moviemeter-go/internal/common"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/models"

	"go.uber.org/zap"
)

// printCatalog prints the reward catalog and milestone table that the server will serve
func printCatalog(catalog *common.Catalog) {
	fmt.Printf("\n┌─ Rewards: %d\n", len(catalog.Rewards))
	for i, r := range catalog.Rewards {
		fmt.Printf("%s %-16s %6d pts  %8s tokens  %s\n",
			common.BoxPrefix(i == len(catalog.Rewards)-1), r.Id, r.PointsCost, r.TokenAmount.String(), r.Name)
	}

	fmt.Printf("\n┌─ Streak milestones: %d\n", len(catalog.Milestones))
	for i, m := range catalog.Milestones {
		fmt.Printf("%s %4d days  x%-5s  %8s tokens  %s\n",
			common.BoxPrefix(i == len(catalog.Milestones)-1), m.StreakDays, m.BonusMultiplier.String(), m.Reward.String(), m.Name)
	}
}

func printPayoutSetup(cfg models.PayoutConfig, services *common.Services) {
	if services.PayoutSender == nil {
		fmt.Println("\nPayouts: disabled (set PAYOUT_ENABLED=true to send reward tokens)")
		return
	}
	funding := services.PayoutSender.Funding()
	fmt.Printf("\nPayouts: enabled, asset %s\n", cfg.Asset)
	fmt.Printf("%sportfolio %s\n", common.BoxPrefix(false), funding.PortfolioId)
	fmt.Printf("%swallet    %s %s\n", common.BoxPrefix(true), funding.WalletId, funding.WalletName)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	logger.Info("Starting MovieMeter setup")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the services creates the SQLite schema, the Formance ledger when
	// configured, and resolves the Prime payout wallet when payouts are enabled.
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := services.Rewards.HealthCheck(ctx); err != nil {
		logger.Fatal("Health check failed", zap.Error(err))
	}

	common.PrintHeader("MOVIEMETER SETUP", common.DefaultWidth)
	fmt.Printf("Database:       %s\n", cfg.Database.Path)
	fmt.Printf("Points ledger:  %s\n", cfg.Ledger.Backend)
	fmt.Printf("Streak zone:    %s\n", cfg.Streak.Timezone)
	fmt.Printf("Redis cache:    %t\n", services.RedisClient != nil)
	printCatalog(services.Catalog)
	printPayoutSetup(cfg.Payout, services)
	common.PrintFooter("Setup complete", common.DefaultWidth)

	logger.Info("Setup completed",
		zap.String("database", cfg.Database.Path),
		zap.String("ledger_backend", cfg.Ledger.Backend),
		zap.Int("rewards", len(services.Catalog.Rewards)))
}
