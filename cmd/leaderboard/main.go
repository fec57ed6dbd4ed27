package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"moviemeter-go/internal/common"
	"moviemeter-go/internal/config"
	"moviemeter-go/internal/leaderboard"
	"moviemeter-go/internal/models"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

func printRanking(title string, entries []models.LeaderboardEntry, metric leaderboard.Metric) {
	color.Cyan("\n%s", title)
	common.PrintBoxSeparator(78)
	if len(entries) == 0 {
		fmt.Println(common.BoxPrefix(true) + " no voters yet")
		return
	}
	for i, e := range entries {
		isLast := i == len(entries)-1
		line := fmt.Sprintf("%s #%-3d %s  votes: %-5d (yes %d / no %d)  streak: %-3d best: %-3d last: %s",
			common.BoxPrefix(isLast), e.Rank, e.Address, e.TotalVotes, e.YesVotes, e.NoVotes,
			e.CurrentStreak, e.LongestStreak, e.LastVoteDate)
		switch {
		case e.Rank == 1:
			color.Green("%s", line)
		case metric == leaderboard.MetricStreak && e.CurrentStreak == 0:
			color.Yellow("%s", line)
		default:
			fmt.Println(line)
		}
	}
}

func rankingTitle(metric leaderboard.Metric) string {
	if metric == leaderboard.MetricStreak {
		return "CURRENT STREAKS"
	}
	return "TOP VOTERS"
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	metricFlag := flag.String("metric", "", "Only print one ranking: total_votes or streak (default: both)")
	limitFlag := flag.Int("limit", 0, "Number of voters per ranking (default: LEADERBOARD_SIZE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *limitFlag > 0 {
		cfg.Leaderboard.Size = *limitFlag
	}

	var only leaderboard.Metric
	if *metricFlag != "" {
		only, err = leaderboard.ParseMetric(*metricFlag)
		if err != nil {
			logger.Fatal("Invalid metric", zap.Error(err))
		}
	}

	catalog, err := common.LoadCatalog(cfg.Rewards.CatalogFile)
	if err != nil {
		logger.Fatal("Failed to load reward catalog", zap.Error(err))
	}
	calc, err := common.NewCalculator(cfg, catalog.Milestones)
	if err != nil {
		logger.Fatal("Failed to build streak calculator", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	votes, err := dbService.GetAllVotes(ctx)
	if err != nil {
		logger.Fatal("Failed to load votes", zap.Error(err))
	}

	agg := leaderboard.NewAggregator(calc, cfg.Leaderboard.Size)
	now := time.Now()

	common.PrintHeader("MOVIEMETER LEADERBOARD", common.DefaultWidth)
	if only != "" {
		printRanking(rankingTitle(only), agg.Build(votes, now, only), only)
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d votes (generated %s)", len(votes), now.UTC().Format(time.RFC3339)),
			common.DefaultWidth)
		logger.Info("Leaderboard report completed",
			zap.String("metric", string(only)),
			zap.Int("total_votes", len(votes)))
		return
	}

	board := agg.Snapshot(votes, now)
	printRanking(rankingTitle(leaderboard.MetricTotalVotes), board.TopVoters, leaderboard.MetricTotalVotes)
	printRanking(rankingTitle(leaderboard.MetricStreak), board.LongestStreaks, leaderboard.MetricStreak)

	summary := fmt.Sprintf("SUMMARY: %d voters, %d votes (generated %s)",
		board.TotalUsers, board.TotalVotes, board.GeneratedAt.Format(time.RFC3339))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Leaderboard report completed",
		zap.Int("total_users", board.TotalUsers),
		zap.Int("total_votes", board.TotalVotes))
}
