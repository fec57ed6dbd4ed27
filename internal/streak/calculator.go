package streak

import (
	"sort"
	"time"

	"moviemeter-go/internal/models"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for lastVoteDate and login keys.
const DateLayout = "2006-01-02"

// DefaultMilestones is the built-in tier table, used when rewards.yaml defines none.
func DefaultMilestones() []models.Milestone {
	return []models.Milestone{
		{Name: "Getting Started", StreakDays: 3, BonusMultiplier: decimal.RequireFromString("1.1"), Reward: decimal.NewFromInt(1)},
		{Name: "Week Warrior", StreakDays: 7, BonusMultiplier: decimal.RequireFromString("1.25"), Reward: decimal.NewFromInt(5)},
		{Name: "Monthly Master", StreakDays: 30, BonusMultiplier: decimal.RequireFromString("1.5"), Reward: decimal.NewFromInt(25)},
		{Name: "Dedicated Critic", StreakDays: 60, BonusMultiplier: decimal.RequireFromString("1.75"), Reward: decimal.NewFromInt(50)},
		{Name: "Century Legend", StreakDays: 100, BonusMultiplier: decimal.NewFromInt(2), Reward: decimal.NewFromInt(100)},
	}
}

// Calculator derives consecutive-day voting streaks. Days are calendar days in loc.
type Calculator struct {
	loc        *time.Location
	milestones []models.Milestone
}

// NewCalculator returns a Calculator with milestones sorted by StreakDays.
// A nil location means UTC.
func NewCalculator(loc *time.Location, milestones []models.Milestone) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]models.Milestone, len(milestones))
	copy(sorted, milestones)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StreakDays < sorted[j].StreakDays })
	return &Calculator{loc: loc, milestones: sorted}
}

func (c *Calculator) Milestones() []models.Milestone {
	return c.milestones
}

// Day formats t as the calendar day it falls on.
func (c *Calculator) Day(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// dayNumber counts calendar days since the epoch, so consecutive days differ by exactly 1 across DST changes.
func (c *Calculator) dayNumber(t time.Time) int64 {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Calculate computes the streak snapshot for one address from its vote timestamps.
// Timestamps may be in any order; several votes on one day count once toward the streak.
func (c *Calculator) Calculate(address string, timestamps []time.Time, now time.Time) models.StreakSnapshot {
	snapshot := models.StreakSnapshot{
		Address:    address,
		TotalVotes: len(timestamps),
	}
	if len(timestamps) == 0 {
		c.applyMilestones(&snapshot)
		return snapshot
	}

	days := make([]int64, 0, len(timestamps))
	seen := make(map[int64]struct{}, len(timestamps))
	var last time.Time
	for _, ts := range timestamps {
		if ts.After(last) {
			last = ts
		}
		d := c.dayNumber(ts)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	run, longest := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	snapshot.LongestStreak = longest
	if c.dayNumber(now)-days[len(days)-1] <= 1 {
		snapshot.CurrentStreak = run
	}
	snapshot.LastVoteDate = c.Day(last)

	c.applyMilestones(&snapshot)
	return snapshot
}

func (c *Calculator) applyMilestones(s *models.StreakSnapshot) {
	s.BonusMultiplier = decimal.NewFromInt(1)
	for i := range c.milestones {
		m := c.milestones[i]
		if m.StreakDays <= s.CurrentStreak {
			s.CurrentMilestone = &m
			s.BonusMultiplier = m.BonusMultiplier
			continue
		}
		s.NextMilestone = &m
		s.DaysToNextMilestone = m.StreakDays - s.CurrentStreak
		break
	}
}

// ReachedMilestone returns the highest tier crossed when the streak grew from before to after, or nil.
func (c *Calculator) ReachedMilestone(before, after int) *models.Milestone {
	var reached *models.Milestone
	for i := range c.milestones {
		m := c.milestones[i]
		if m.StreakDays > before && m.StreakDays <= after {
			reached = &m
		}
	}
	return reached
}
