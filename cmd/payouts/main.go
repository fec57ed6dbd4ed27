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

	"moviemeter-go/internal/api"
	"moviemeter-go/internal/common"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/database"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/payout"
	"moviemeter-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type grantRequest struct {
	address   string
	amount    decimal.Decimal
	reference string
}

func parseGrant(address, amount, reference string) (*grantRequest, error) {
	address = api.NormalizeAddress(address)
	if !api.IsWalletAddress(address) {
		return nil, fmt.Errorf("invalid --address %q: expected a 0x-prefixed 40 hex character address", address)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	if reference == "" {
		reference = uuid.New().String()
	}
	return &grantRequest{address: address, amount: value, reference: reference}, nil
}

func printPayouts(payouts []models.Payout) {
	if len(payouts) == 0 {
		fmt.Println(common.BoxPrefix(true) + " no pending payouts")
		return
	}
	for i, p := range payouts {
		isLast := i == len(payouts)-1
		fmt.Printf("%s %s %12s %-20s to %s (source: %s, attempts: %d)\n",
			common.BoxPrefix(isLast),
			common.ShortId(p.Id),
			p.Amount.String(),
			p.Asset,
			p.UserAddress,
			p.SourceRef,
			p.Attempts)
		if p.LastError != "" {
			fmt.Printf("%s last error: %s\n", common.BoxDetailPrefix(isLast), p.LastError)
		}
	}
}

func listPending(ctx context.Context, dbService *database.Service, limit int) {
	pending, err := dbService.GetPendingPayouts(ctx, limit)
	if err != nil {
		zap.L().Fatal("Failed to load pending payouts", zap.Error(err))
	}
	common.PrintHeader("PENDING PAYOUTS", common.WideWidth)
	printPayouts(pending)
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d pending payouts", len(pending)), common.WideWidth)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	dispatchFlag := flag.Bool("dispatch", false, "Submit one batch of pending payouts through Prime now")
	grantFlag := flag.Bool("grant", false, "Queue a manual payout (requires --address and --amount)")
	addressFlag := flag.String("address", "", "Wallet address to pay (with --grant)")
	amountFlag := flag.String("amount", "", "Token amount to pay (with --grant)")
	refFlag := flag.String("ref", "", "Idempotency reference for the grant (default: random)")
	limitFlag := flag.Int("limit", 50, "Maximum number of pending payouts to list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if *grantFlag {
		req, err := parseGrant(*addressFlag, *amountFlag, *refFlag)
		if err != nil {
			logger.Fatal("Invalid grant", zap.Error(err))
		}

		dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer dbService.Close()

		p, err := dbService.EnqueuePayout(ctx, store.EnqueuePayoutParams{
			Address:   req.address,
			Source:    models.PayoutSourceManual,
			SourceRef: "manual:" + req.reference,
			Asset:     cfg.Payout.Asset,
			Amount:    req.amount,
		})
		if err != nil {
			logger.Fatal("Failed to queue payout", zap.Error(err))
		}
		fmt.Printf("Queued payout %s: %s %s to %s (status: %s)\n", p.Id, p.Amount, p.Asset, p.UserAddress, p.Status)
		return
	}

	if !*dispatchFlag {
		dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer dbService.Close()
		listPending(ctx, dbService, *limitFlag)
		return
	}

	cfg.Payout.Enabled = true
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	dispatcher := payout.NewDispatcher(payout.DispatcherConfig{
		Queue:       services.DbService,
		Sender:      services.PayoutSender,
		Metrics:     services.Metrics,
		BatchSize:   cfg.Payout.BatchSize,
		MaxAttempts: cfg.Payout.MaxAttempts,
	})
	submitted := dispatcher.ProcessBatch(ctx)

	logger.Info("Payout batch completed", zap.Int("submitted", submitted))
	listPending(ctx, services.DbService, *limitFlag)
}
