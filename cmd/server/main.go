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
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moviemeter-go/internal/common"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/handler"
	"moviemeter-go/internal/payout"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const poolStatsInterval = 15 * time.Second

func main() {
	addrFlag := flag.String("addr", "", "Listen address (overrides SERVER_ADDR)")
	flag.Parse()

	logger, loggerCleanup := common.InitializeLogger()

	if err := run(*addrFlag); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		loggerCleanup()
		os.Exit(1)
	}
	loggerCleanup()
}

// run serves until SIGINT or SIGTERM. Configuration and startup failures are
// returned so main can log them before exiting.
func run(addrOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting MovieMeter rewards server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("ledger_backend", cfg.Ledger.Backend),
		zap.Bool("payouts_enabled", cfg.Payout.Enabled))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.NewRouter(services.Rewards, services.Metrics, services.Registry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var dispatcher *payout.Dispatcher
	if services.PayoutSender != nil {
		dispatcher = payout.NewDispatcher(payout.DispatcherConfig{
			Queue:           services.DbService,
			Sender:          services.PayoutSender,
			Metrics:         services.Metrics,
			PollingInterval: cfg.Payout.PollingInterval,
			BatchSize:       cfg.Payout.BatchSize,
			MaxAttempts:     cfg.Payout.MaxAttempts,
		})
		dispatcher.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			services.Metrics.RecordDBPoolStats(services.DbService.Stats())
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if dispatcher != nil {
			dispatcher.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
			return err
		}
		zap.L().Info("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
