package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moviemeter-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "moviemeter:leaderboard:snapshot"

// LeaderboardCache stores the latest leaderboard snapshot
type LeaderboardCache interface {
	// Get returns the cached snapshot, or nil on a miss
	Get(ctx context.Context) (*models.Leaderboard, error)
	Set(ctx context.Context, snapshot *models.Leaderboard) error
	// Invalidate drops the snapshot after a vote changes the rankings
	Invalidate(ctx context.Context) error
}

type redisLeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLeaderboardCache creates a Redis-backed cache whose entries expire after ttl
func NewRedisLeaderboardCache(client *redis.Client, ttl time.Duration) LeaderboardCache {
	return &redisLeaderboardCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *redisLeaderboardCache) Get(ctx context.Context) (*models.Leaderboard, error) {
	val, err := r.client.Get(ctx, leaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard snapshot: %w", err)
	}

	var snapshot models.Leaderboard
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *redisLeaderboardCache) Set(ctx context.Context, snapshot *models.Leaderboard) error {
	val, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard snapshot: %w", err)
	}
	return r.client.Set(ctx, leaderboardKey, val, r.ttl).Err()
}

func (r *redisLeaderboardCache) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, leaderboardKey).Err()
}

type noopLeaderboardCache struct{}

// NewNoopLeaderboardCache returns a cache that never hits, used when Redis is not configured
func NewNoopLeaderboardCache() LeaderboardCache {
	return noopLeaderboardCache{}
}

func (noopLeaderboardCache) Get(context.Context) (*models.Leaderboard, error) { return nil, nil }
func (noopLeaderboardCache) Set(context.Context, *models.Leaderboard) error  { return nil }
func (noopLeaderboardCache) Invalidate(context.Context) error                { return nil }

// NewRedisClient connects to redisURL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
