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

package payout

import (
	"context"
	"sync"
	"time"

	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

// Sender delivers a payout on-chain and returns the provider activity id.
type Sender interface {
	SendPayout(ctx context.Context, payout models.Payout) (string, error)
}

// DispatcherConfig contains configuration for Dispatcher
type DispatcherConfig struct {
	Queue           store.PayoutQueue
	Sender          Sender
	Metrics         *metrics.Metrics
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int
}

// Dispatcher polls the payout queue and submits pending payouts
type Dispatcher struct {
	queue   store.PayoutQueue
	sender  Sender
	metrics *metrics.Metrics

	pollingInterval time.Duration
	batchSize       int
	maxAttempts     int

	// Control channels
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewDispatcher creates a new payout dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 30 * time.Second
	}
	return &Dispatcher{
		queue:           cfg.Queue,
		sender:          cfg.Sender,
		metrics:         cfg.Metrics,
		pollingInterval: cfg.PollingInterval,
		batchSize:       cfg.BatchSize,
		maxAttempts:     cfg.MaxAttempts,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins dispatching in the background
func (d *Dispatcher) Start(ctx context.Context) {
	zap.L().Info("Starting payout dispatcher",
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_attempts", d.maxAttempts))

	go d.pollLoop(ctx)
}

// Stop gracefully stops the dispatcher and waits for the current batch
func (d *Dispatcher) Stop() {
	zap.L().Info("Stopping payout dispatcher")
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.doneChan
	zap.L().Info("Payout dispatcher stopped")
}

// pollLoop runs the main polling loop
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	d.ProcessBatch(ctx)

	for {
		select {
		case <-ticker.C:
			d.ProcessBatch(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessBatch submits up to one batch of pending payouts and returns how many were submitted
func (d *Dispatcher) ProcessBatch(ctx context.Context) int {
	pending, err := d.queue.GetPendingPayouts(ctx, d.batchSize)
	if err != nil {
		zap.L().Error("Failed to load pending payouts", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	zap.L().Debug("Dispatching payouts", zap.Int("count", len(pending)))

	submitted := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		if d.dispatch(ctx, p) {
			submitted++
		}
	}
	return submitted
}

func (d *Dispatcher) dispatch(ctx context.Context, p models.Payout) bool {
	activityId, err := d.sender.SendPayout(ctx, p)
	if err != nil {
		zap.L().Error("Payout submission failed",
			zap.String("payout_id", p.Id),
			zap.String("address", p.UserAddress),
			zap.Int("attempt", p.Attempts+1),
			zap.Error(err))

		if markErr := d.queue.MarkPayoutAttemptFailed(ctx, p.Id, err.Error(), d.maxAttempts); markErr != nil {
			zap.L().Error("Failed to record payout attempt", zap.String("payout_id", p.Id), zap.Error(markErr))
		}
		status := "retry"
		if p.Attempts+1 >= d.maxAttempts {
			status = models.PayoutFailed
		}
		d.metrics.ObservePayout(status)
		return false
	}

	if err := d.queue.MarkPayoutSubmitted(ctx, p.Id, activityId); err != nil {
		// The withdrawal is idempotent on payout id, so a resend after this is harmless.
		zap.L().Error("Failed to mark payout submitted",
			zap.String("payout_id", p.Id),
			zap.String("activity_id", activityId),
			zap.Error(err))
		return false
	}

	zap.L().Info("Payout submitted",
		zap.String("payout_id", p.Id),
		zap.String("address", p.UserAddress),
		zap.String("amount", p.Amount.String()),
		zap.String("asset", p.Asset),
		zap.String("activity_id", activityId))
	d.metrics.ObservePayout(models.PayoutSubmitted)
	return true
}
