package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/streak"
)

// Metric is the value voters are ranked by.
type Metric string

const (
	MetricTotalVotes Metric = "total_votes"
	MetricStreak     Metric = "streak"
)

const DefaultSize = 10

// ParseMetric accepts the metric names used in query strings.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTotalVotes, "":
		return MetricTotalVotes, nil
	case MetricStreak:
		return MetricStreak, nil
	}
	return "", fmt.Errorf("unknown leaderboard metric %q", s)
}

// Aggregator ranks voters from the full vote log.
type Aggregator struct {
	calc *streak.Calculator
	size int
}

func NewAggregator(calc *streak.Calculator, size int) *Aggregator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Aggregator{calc: calc, size: size}
}

type tally struct {
	entry      models.LeaderboardEntry
	timestamps []time.Time
}

// Entries reduces votes to one unranked entry per address, in the order addresses first appear.
func (a *Aggregator) Entries(votes []models.Vote, now time.Time) []models.LeaderboardEntry {
	byAddress := make(map[string]*tally)
	var order []*tally

	for _, v := range votes {
		t, ok := byAddress[v.Address]
		if !ok {
			t = &tally{entry: models.LeaderboardEntry{Address: v.Address}}
			byAddress[v.Address] = t
			order = append(order, t)
		}
		t.entry.TotalVotes++
		if v.VoteType {
			t.entry.YesVotes++
		} else {
			t.entry.NoVotes++
		}
		t.timestamps = append(t.timestamps, v.Timestamp)
	}

	entries := make([]models.LeaderboardEntry, 0, len(order))
	for _, t := range order {
		s := a.calc.Calculate(t.entry.Address, t.timestamps, now)
		t.entry.CurrentStreak = s.CurrentStreak
		t.entry.LongestStreak = s.LongestStreak
		t.entry.LastVoteDate = s.LastVoteDate
		entries = append(entries, t.entry)
	}
	return entries
}

// Rank sorts entries descending by metric, keeps the first limit and numbers them from 1.
// Ties keep their input order.
func Rank(entries []models.LeaderboardEntry, metric Metric, limit int) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	value := func(e models.LeaderboardEntry) int {
		if metric == MetricStreak {
			return e.CurrentStreak
		}
		return e.TotalVotes
	}
	sort.SliceStable(ranked, func(i, j int) bool { return value(ranked[i]) > value(ranked[j]) })

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Build ranks all voters by metric.
func (a *Aggregator) Build(votes []models.Vote, now time.Time, metric Metric) []models.LeaderboardEntry {
	return Rank(a.Entries(votes, now), metric, a.size)
}

// Snapshot computes both rankings and the totals in one pass over votes.
func (a *Aggregator) Snapshot(votes []models.Vote, now time.Time) models.Leaderboard {
	entries := a.Entries(votes, now)
	return models.Leaderboard{
		TopVoters:      Rank(entries, MetricTotalVotes, a.size),
		LongestStreaks: Rank(entries, MetricStreak, a.size),
		TotalUsers:     len(entries),
		TotalVotes:     len(votes),
		GeneratedAt:    now.UTC(),
	}
}
