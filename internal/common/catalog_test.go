package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
rewards:
  - id: premium_badge
    name: Premium Badge
    points_cost: 250
    token_amount: "5.5"
  - id: sticker
    points_cost: 10
milestones:
  - name: Week Warrior
    streak_days: 7
    bonus_multiplier: "1.25"
    reward: "5"
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Rewards, 2)
	assert.Equal(t, int64(250), catalog.Rewards[0].PointsCost)
	assert.True(t, catalog.Rewards[0].TokenAmount.Equal(decimal.RequireFromString("5.5")))
	assert.Equal(t, "sticker", catalog.Rewards[1].Name, "name defaults to id")
	assert.True(t, catalog.Rewards[1].TokenAmount.IsZero())

	require.Len(t, catalog.Milestones, 1)
	assert.Equal(t, 7, catalog.Milestones[0].StreakDays)
	assert.True(t, catalog.Milestones[0].BonusMultiplier.Equal(decimal.RequireFromString("1.25")))
}

func TestLoadCatalog_MissingFileUsesDefaults(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRewards(), catalog.Rewards)
	assert.Len(t, catalog.Milestones, 5)
}

func TestLoadCatalog_NoMilestonesKeepsDefaultTiers(t *testing.T) {
	path := writeCatalog(t, "rewards:\n  - id: sticker\n    points_cost: 10\n")
	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Milestones, 5)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "rewards:\n  - points_cost: 10\n"},
		{"duplicate id", "rewards:\n  - id: a\n  - id: a\n"},
		{"negative cost", "rewards:\n  - id: a\n    points_cost: -1\n"},
		{"bad amount", "rewards:\n  - id: a\n    token_amount: lots\n"},
		{"negative amount", "rewards:\n  - id: a\n    token_amount: \"-1\"\n"},
		{"zero days", "milestones:\n  - streak_days: 0\n"},
		{"duplicate days", "milestones:\n  - streak_days: 3\n  - streak_days: 3\n"},
		{"multiplier below one", "milestones:\n  - streak_days: 3\n    bonus_multiplier: \"0.5\"\n"},
		{"not yaml", "rewards: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tt.content))
			assert.Error(t, err)
		})
	}
}
