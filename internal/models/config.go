package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Ledger      LedgerConfig
	Streak      StreakConfig
	Leaderboard LeaderboardConfig
	Redis       RedisConfig
	Rewards     RewardsConfig
	Payout      PayoutConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LedgerConfig selects the points ledger backend ("sqlite" or "formance")
type LedgerConfig struct {
	Backend  string
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack credentials
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// StreakConfig controls how vote timestamps are bucketed into calendar days
type StreakConfig struct {
	Timezone string
}

// LeaderboardConfig controls leaderboard size and snapshot caching
type LeaderboardConfig struct {
	Size     int
	CacheTTL time.Duration
}

// RedisConfig holds the optional snapshot cache connection
type RedisConfig struct {
	URL string
}

// RewardsConfig points at the reward catalog file
type RewardsConfig struct {
	CatalogFile string
}

// PayoutConfig holds reward-token payout settings
type PayoutConfig struct {
	Enabled         bool
	PortfolioId     string
	WalletId        string
	Asset           string // SYMBOL-network-type, e.g. USDC-base-mainnet
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int
}

// Milestone is a streak-length threshold unlocking a bonus
type Milestone struct {
	Name            string          `json:"name"`
	StreakDays      int             `json:"streakDays"`
	BonusMultiplier decimal.Decimal `json:"bonusMultiplier"`
	Reward          decimal.Decimal `json:"reward"`
}

// Reward is a catalog item redeemable for points
type Reward struct {
	Id          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	PointsCost  int64           `json:"pointsCost"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
}
