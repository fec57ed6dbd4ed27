package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/streak"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Decimal fields are strings in the file so amounts keep their exact precision.
type RewardConfig struct {
	Id          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PointsCost  int64  `yaml:"points_cost"`
	TokenAmount string `yaml:"token_amount"`
}

type MilestoneConfig struct {
	Name            string `yaml:"name"`
	StreakDays      int    `yaml:"streak_days"`
	BonusMultiplier string `yaml:"bonus_multiplier"`
	Reward          string `yaml:"reward"`
}

type CatalogConfig struct {
	Rewards    []RewardConfig    `yaml:"rewards"`
	Milestones []MilestoneConfig `yaml:"milestones"`
}

// Catalog is the parsed reward catalog and streak milestone table
type Catalog struct {
	Rewards    []models.Reward
	Milestones []models.Milestone
}

// DefaultRewards is the catalog served when no catalog file exists.
func DefaultRewards() []models.Reward {
	return []models.Reward{
		{Id: "profile_theme", Name: "Profile Theme", Description: "Unlock a custom profile theme", PointsCost: 100, TokenAmount: decimal.Zero},
		{Id: "premium_badge", Name: "Premium Badge", Description: "Show a premium critic badge", PointsCost: 250, TokenAmount: decimal.NewFromInt(5)},
		{Id: "early_access", Name: "Early Access", Description: "Vote on new releases before everyone else", PointsCost: 500, TokenAmount: decimal.NewFromInt(10)},
		{Id: "nft_poster", Name: "NFT Poster", Description: "Redeem for a limited movie poster", PointsCost: 1000, TokenAmount: decimal.NewFromInt(25)},
	}
}

// LoadCatalog reads the reward catalog. A missing file yields the default
// catalog, and a file without milestones keeps the default tiers.
func LoadCatalog(catalogFile string) (*Catalog, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("Reward catalog not found, using defaults", zap.String("file", catalogPath))
		return &Catalog{Rewards: DefaultRewards(), Milestones: streak.DefaultMilestones()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}

	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", catalogFile, err)
	}

	rewards, err := parseRewards(config.Rewards)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", catalogFile, err)
	}
	milestones, err := parseMilestones(config.Milestones)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", catalogFile, err)
	}
	if len(milestones) == 0 {
		milestones = streak.DefaultMilestones()
	}

	zap.L().Info("Loaded reward catalog",
		zap.String("file", catalogPath),
		zap.Int("rewards", len(rewards)),
		zap.Int("milestones", len(milestones)))
	return &Catalog{Rewards: rewards, Milestones: milestones}, nil
}

func parseRewards(configs []RewardConfig) ([]models.Reward, error) {
	rewards := make([]models.Reward, 0, len(configs))
	seen := make(map[string]bool, len(configs))
	for i, rc := range configs {
		if rc.Id == "" {
			return nil, fmt.Errorf("reward at index %d missing id", i)
		}
		if seen[rc.Id] {
			return nil, fmt.Errorf("duplicate reward id %q", rc.Id)
		}
		seen[rc.Id] = true
		if rc.PointsCost < 0 {
			return nil, fmt.Errorf("reward %q has negative points_cost", rc.Id)
		}
		amount, err := parseAmount(rc.TokenAmount)
		if err != nil {
			return nil, fmt.Errorf("reward %q token_amount: %w", rc.Id, err)
		}
		name := rc.Name
		if name == "" {
			name = rc.Id
		}
		rewards = append(rewards, models.Reward{
			Id:          rc.Id,
			Name:        name,
			Description: rc.Description,
			PointsCost:  rc.PointsCost,
			TokenAmount: amount,
		})
	}
	return rewards, nil
}

func parseMilestones(configs []MilestoneConfig) ([]models.Milestone, error) {
	milestones := make([]models.Milestone, 0, len(configs))
	seen := make(map[int]bool, len(configs))
	for i, mc := range configs {
		if mc.StreakDays <= 0 {
			return nil, fmt.Errorf("milestone at index %d needs positive streak_days", i)
		}
		if seen[mc.StreakDays] {
			return nil, fmt.Errorf("duplicate milestone for %d days", mc.StreakDays)
		}
		seen[mc.StreakDays] = true

		multiplier := decimal.NewFromInt(1)
		if mc.BonusMultiplier != "" {
			m, err := decimal.NewFromString(mc.BonusMultiplier)
			if err != nil {
				return nil, fmt.Errorf("milestone %d bonus_multiplier: %w", mc.StreakDays, err)
			}
			if m.LessThan(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("milestone %d bonus_multiplier must be at least 1", mc.StreakDays)
			}
			multiplier = m
		}
		reward, err := parseAmount(mc.Reward)
		if err != nil {
			return nil, fmt.Errorf("milestone %d reward: %w", mc.StreakDays, err)
		}
		milestones = append(milestones, models.Milestone{
			Name:            mc.Name,
			StreakDays:      mc.StreakDays,
			BonusMultiplier: multiplier,
			Reward:          reward,
		})
	}
	return milestones, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}
	return amount, nil
}
