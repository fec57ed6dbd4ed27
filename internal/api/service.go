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

package api

import (
	"context"
	"fmt"
	"time"

	"moviemeter-go/internal/cache"
	"moviemeter-go/internal/leaderboard"
	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"
	"moviemeter-go/internal/streak"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig wires the rewards service to its stores.
type ServiceConfig struct {
	Votes       store.VoteStore
	Ledger      store.PointsLedger
	Payouts     store.PayoutQueue // nil disables token payouts
	PayoutAsset string
	Cache       cache.LeaderboardCache
	Calculator  *streak.Calculator
	Leaderboard *leaderboard.Aggregator
	Catalog     []models.Reward
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Service orchestrates votes, streaks, leaderboards and the points ledger
type Service struct {
	votes       store.VoteStore
	ledger      store.PointsLedger
	payouts     store.PayoutQueue
	payoutAsset string
	cache       cache.LeaderboardCache
	calc        *streak.Calculator
	board       *leaderboard.Aggregator
	catalog     []models.Reward
	rewards     map[string]models.Reward
	metrics     *metrics.Metrics
	now         func() time.Time

	validate *validator.Validate
	locks    *addressLocks
	group    singleflight.Group
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		votes:       cfg.Votes,
		ledger:      cfg.Ledger,
		payouts:     cfg.Payouts,
		payoutAsset: cfg.PayoutAsset,
		cache:       cfg.Cache,
		calc:        cfg.Calculator,
		board:       cfg.Leaderboard,
		catalog:     cfg.Catalog,
		rewards:     make(map[string]models.Reward, len(cfg.Catalog)),
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		validate:    newValidator(),
		locks:       newAddressLocks(),
	}
	if s.cache == nil {
		s.cache = cache.NewNoopLeaderboardCache()
	}
	if s.calc == nil {
		s.calc = streak.NewCalculator(time.UTC, streak.DefaultMilestones())
	}
	if s.board == nil {
		s.board = leaderboard.NewAggregator(s.calc, leaderboard.DefaultSize)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, r := range cfg.Catalog {
		s.rewards[r.Id] = r
	}
	return s
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings the vote store, and the points ledger when it lives on a
// separate backend.
func (s *Service) HealthCheck(ctx context.Context) error {
	if p, ok := s.votes.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	} else if _, err := s.votes.GetVotesByMovie(ctx, ""); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if any(s.ledger) == any(s.votes) {
		return nil
	}
	if p, ok := s.ledger.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("points ledger health check failed: %w", err)
		}
	}
	return nil
}

// invalidateLeaderboard drops the cached snapshot after a vote. A failure only
// leaves a stale snapshot until its TTL runs out.
func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logCacheError("invalidate", err)
	}
}
