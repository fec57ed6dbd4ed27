package leaderboard

import (
	"fmt"
	"testing"
	"time"

	"moviemeter-go/internal/models"
	"moviemeter-go/internal/streak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func vote(address string, daysAgo int, yes bool) models.Vote {
	return models.Vote{
		Id:        fmt.Sprintf("%s-%d", address, daysAgo),
		MovieId:   fmt.Sprintf("m%d", daysAgo),
		Address:   address,
		VoteType:  yes,
		Timestamp: now.AddDate(0, 0, -daysAgo),
	}
}

func newAggregator(size int) *Aggregator {
	return NewAggregator(streak.NewCalculator(time.UTC, streak.DefaultMilestones()), size)
}

func TestSnapshot(t *testing.T) {
	votes := []models.Vote{
		vote("alice", 5, true),
		vote("bob", 4, false),
		vote("alice", 4, true),
		vote("carol", 3, true),
		vote("bob", 1, true),
		vote("bob", 0, false),
	}

	snap := newAggregator(10).Snapshot(votes, now)

	assert.Equal(t, 3, snap.TotalUsers)
	assert.Equal(t, 6, snap.TotalVotes)

	require.Len(t, snap.TopVoters, 3)
	assert.Equal(t, "bob", snap.TopVoters[0].Address)
	assert.Equal(t, 3, snap.TopVoters[0].TotalVotes)
	assert.Equal(t, 1, snap.TopVoters[0].YesVotes)
	assert.Equal(t, 2, snap.TopVoters[0].NoVotes)
	assert.Equal(t, "2025-03-10", snap.TopVoters[0].LastVoteDate)
	assert.Equal(t, "alice", snap.TopVoters[1].Address)
	assert.Equal(t, "carol", snap.TopVoters[2].Address)

	// Only bob voted yesterday and today; the others' streaks have lapsed.
	assert.Equal(t, "bob", snap.LongestStreaks[0].Address)
	assert.Equal(t, 2, snap.LongestStreaks[0].CurrentStreak)
	assert.Equal(t, 0, snap.LongestStreaks[1].CurrentStreak)
	assert.Equal(t, 2, snap.TopVoters[1].LongestStreak, "alice keeps her longest streak")
}

func TestRank_DenseFromOne(t *testing.T) {
	var votes []models.Vote
	for i := 0; i < 15; i++ {
		for j := 0; j <= i%4; j++ {
			votes = append(votes, vote(fmt.Sprintf("user%02d", i), j, true))
		}
	}

	for _, metric := range []Metric{MetricTotalVotes, MetricStreak} {
		ranked := newAggregator(0).Build(votes, now, metric)
		require.Len(t, ranked, DefaultSize)
		for i, e := range ranked {
			assert.Equal(t, i+1, e.Rank, "metric %s", metric)
			if i > 0 {
				prev := ranked[i-1]
				if metric == MetricTotalVotes {
					assert.GreaterOrEqual(t, prev.TotalVotes, e.TotalVotes)
				} else {
					assert.GreaterOrEqual(t, prev.CurrentStreak, e.CurrentStreak)
				}
			}
		}
	}
}

func TestRank_TiesKeepFirstSeenOrder(t *testing.T) {
	votes := []models.Vote{
		vote("zed", 2, true),
		vote("amy", 2, true),
		vote("kim", 1, true),
	}

	ranked := newAggregator(10).Build(votes, now, MetricTotalVotes)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"zed", "amy", "kim"}, []string{ranked[0].Address, ranked[1].Address, ranked[2].Address})
}

func TestSnapshot_Empty(t *testing.T) {
	snap := newAggregator(10).Snapshot(nil, now)
	assert.Empty(t, snap.TopVoters)
	assert.Empty(t, snap.LongestStreaks)
	assert.Equal(t, 0, snap.TotalUsers)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricTotalVotes, m)

	m, err = ParseMetric("streak")
	require.NoError(t, err)
	assert.Equal(t, MetricStreak, m)

	_, err = ParseMetric("karma")
	assert.Error(t, err)
}
