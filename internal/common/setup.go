package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"moviemeter-go/internal/api"
	"moviemeter-go/internal/cache"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/database"
	"moviemeter-go/internal/formance"
	"moviemeter-go/internal/leaderboard"
	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/prime"
	"moviemeter-go/internal/store"
	"moviemeter-go/internal/streak"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService    *database.Service
	Ledger       store.PointsLedger
	RedisClient  *redis.Client
	PrimeService *prime.Service
	PayoutSender *prime.PayoutSender
	Rewards      *api.Service
	Calculator   *streak.Calculator
	Aggregator   *leaderboard.Aggregator
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Catalog      *Catalog
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens every backend the server needs and wires the rewards service.
// Prime is only contacted when payouts are enabled.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	services := &Services{}
	var err error

	services.DbService, err = database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services.Ledger, err = InitializeLedger(ctx, cfg, services.DbService)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Catalog, err = LoadCatalog(cfg.Rewards.CatalogFile)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Calculator, err = NewCalculator(cfg, services.Catalog.Milestones)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Aggregator = leaderboard.NewAggregator(services.Calculator, cfg.Leaderboard.Size)

	services.Registry = prometheus.NewRegistry()
	services.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	services.Metrics = metrics.NewMetrics(services.Registry)

	leaderboardCache := cache.NewNoopLeaderboardCache()
	if cfg.Redis.URL != "" {
		zap.L().Info("Connecting to Redis leaderboard cache")
		services.RedisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			services.Close()
			return nil, err
		}
		leaderboardCache = cache.NewRedisLeaderboardCache(services.RedisClient, cfg.Leaderboard.CacheTTL)
	}

	var payouts store.PayoutQueue
	if cfg.Payout.Enabled {
		if err := services.initializePayouts(ctx, cfg.Payout); err != nil {
			services.Close()
			return nil, err
		}
		payouts = services.DbService
	}

	services.Rewards = api.NewService(api.ServiceConfig{
		Votes:       services.DbService,
		Ledger:      services.Ledger,
		Payouts:     payouts,
		PayoutAsset: cfg.Payout.Asset,
		Cache:       leaderboardCache,
		Calculator:  services.Calculator,
		Leaderboard: services.Aggregator,
		Catalog:     services.Catalog.Rewards,
		Metrics:     services.Metrics,
	})

	return services, nil
}

// InitializeLedger returns the configured points backend. The SQLite backend shares db.
func InitializeLedger(ctx context.Context, cfg *models.Config, db *database.Service) (store.PointsLedger, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendFormance:
		zap.L().Info("Using Formance points ledger")
		ledger, err := formance.NewService(ctx, cfg.Ledger.Formance)
		if err != nil {
			return nil, err
		}
		return ledger, nil
	case config.LedgerBackendSQLite, "":
		return db, nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
}

// NewCalculator builds the streak calculator for the configured timezone.
func NewCalculator(cfg *models.Config, milestones []models.Milestone) (*streak.Calculator, error) {
	loc, err := time.LoadLocation(cfg.Streak.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", cfg.Streak.Timezone, err)
	}
	return streak.NewCalculator(loc, milestones), nil
}

// InitializeDatabaseOnly initializes just the database service without Prime API
// Useful for read-only operations like the leaderboard report
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) initializePayouts(ctx context.Context, cfg models.PayoutConfig) error {
	zap.L().Info("Loading Prime API credentials")
	creds, err := loadPrimeCredentials()
	if err != nil {
		return err
	}

	cs.PrimeService, err = prime.NewService(creds)
	if err != nil {
		return err
	}

	funding, err := cs.PrimeService.ResolveFunding(ctx, cfg.PortfolioId, cfg.WalletId, cfg.Asset)
	if err != nil {
		return fmt.Errorf("unable to resolve payout wallet: %w", err)
	}

	cs.PayoutSender = prime.NewPayoutSender(cs.PrimeService, funding)
	return nil
}

func (cs *Services) Close() {
	if cs.Ledger != nil && cs.Ledger != store.PointsLedger(cs.DbService) {
		cs.Ledger.Close()
	}
	if cs.RedisClient != nil {
		if err := cs.RedisClient.Close(); err != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
