package database

import (
	"context"
	"testing"
	"time"

	"moviemeter-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordVote(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	voter := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	at := time.Date(2025, 3, 1, 20, 30, 0, 0, time.UTC)

	vote, err := service.RecordVote(ctx, "tt0111161", voter, true, at)
	require.NoError(t, err)
	assert.NotEmpty(t, vote.Id)
	assert.Equal(t, "tt0111161", vote.MovieId)
	assert.True(t, vote.VoteType)
	assert.True(t, vote.Timestamp.Equal(at))

	user, err := service.GetUser(ctx, voter)
	require.NoError(t, err)
	assert.True(t, user.FirstSeenAt.Equal(at))
	assert.Equal(t, 1, user.VoteCount)
}

func TestRecordVote_DuplicateRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	voter := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	_, err := service.RecordVote(ctx, "tt0068646", voter, true, testNow)
	require.NoError(t, err)

	_, err = service.RecordVote(ctx, "tt0068646", voter, false, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, store.ErrDuplicateVote)

	votes, err := service.GetVotesByMovie(ctx, "tt0068646")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.True(t, votes[0].VoteType, "first vote must be kept")
}

func TestGetVotes_ChronologicalOrder(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	alice := "0xcccccccccccccccccccccccccccccccccccccccc"
	bob := "0xdddddddddddddddddddddddddddddddddddddddd"
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	inserts := []struct {
		movie string
		voter string
		at    time.Time
	}{
		{"m2", alice, base.Add(48 * time.Hour)},
		{"m1", bob, base},
		{"m1", alice, base.Add(24 * time.Hour)},
	}
	for _, in := range inserts {
		_, err := service.RecordVote(ctx, in.movie, in.voter, true, in.at)
		require.NoError(t, err)
	}

	all, err := service.GetAllVotes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, bob, all[0].Address)
	assert.Equal(t, "m2", all[2].MovieId)

	byAlice, err := service.GetVotesByAddress(ctx, alice)
	require.NoError(t, err)
	require.Len(t, byAlice, 2)
	assert.Equal(t, "m1", byAlice[0].MovieId)

	byMovie, err := service.GetVotesByMovie(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, byMovie, 2)

	users, err := service.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, bob, users[0].Address)
	assert.Equal(t, 1, users[0].VoteCount)
	assert.Equal(t, alice, users[1].Address)
	assert.Equal(t, 2, users[1].VoteCount)

	none, err := service.GetVotesByMovie(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
