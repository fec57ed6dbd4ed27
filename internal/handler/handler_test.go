package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moviemeter-go/internal/api"
	"moviemeter-go/internal/database"
	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	voter    = "0x1111111111111111111111111111111111111111"
	referred = "0x2222222222222222222222222222222222222222"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "handler.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	svc := api.NewService(api.ServiceConfig{
		Votes:   db,
		Ledger:  db,
		Metrics: m,
		Catalog: []models.Reward{
			{Id: "premium_badge", Name: "Premium Badge", PointsCost: 50, TokenAmount: decimal.NewFromInt(5)},
		},
	})
	return NewRouter(svc, m, reg)
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestCastVoteAndReadBack(t *testing.T) {
	router := setupRouter(t)

	rec, env := do(t, router, http.MethodPost, "/votes", fmt.Sprintf(`{"movieId":"tt0111161","address":"%s","voteType":true}`, voter))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var result models.VoteResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(10), result.PointsAwarded)
	assert.Equal(t, 1, result.Streak.CurrentStreak)

	rec, env = do(t, router, http.MethodPost, "/votes", fmt.Sprintf(`{"movieId":"tt0111161","address":"%s","voteType":false}`, voter))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_VOTE", env.Code)
	assert.False(t, env.Success)

	rec, env = do(t, router, http.MethodGet, "/movies/tt0111161/votes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tally models.MovieVotes
	require.NoError(t, json.Unmarshal(env.Data, &tally))
	assert.Equal(t, 1, tally.YesVotes)
	assert.Equal(t, 1, tally.TotalVotes)

	rec, env = do(t, router, http.MethodGet, "/streak?address="+voter, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.StreakSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Equal(t, 1, snapshot.TotalVotes)

	rec, env = do(t, router, http.MethodGet, "/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board models.Leaderboard
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board.TopVoters, 1)
	assert.Equal(t, 1, board.TopVoters[0].Rank)
	assert.Equal(t, voter, board.TopVoters[0].Address)
}

func TestPointsAndClaimFlow(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/points", fmt.Sprintf(`{"address":"%s","type":"referral","referredAddress":"%s"}`, voter, referred))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, router, http.MethodPost, "/points", fmt.Sprintf(`{"address":"%s","type":"referral","referredAddress":"%s"}`, voter, referred))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_TRANSACTION", env.Code)

	rec, env = do(t, router, http.MethodGet, "/points?address="+voter, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.PointsSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, int64(50), summary.Points)

	rec, env = do(t, router, http.MethodPost, "/rewards/claim", fmt.Sprintf(`{"userId":"%s","rewardId":"premium_badge","pointsCost":50}`, voter))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claim models.ClaimResult
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	require.NotNil(t, claim.Balance)
	assert.Equal(t, int64(0), *claim.Balance)

	rec, env = do(t, router, http.MethodPost, "/rewards/claim", fmt.Sprintf(`{"userId":"%s","rewardId":"premium_badge"}`, voter))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CLAIMED", env.Code)

	rec, env = do(t, router, http.MethodGet, "/points/history?address="+voter+"&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.PointsRecord
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "claim", history[0].Type)
	assert.Equal(t, int64(-50), history[0].Amount)
}

func TestErrorResponses(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/votes", `{"movieId":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty body", http.MethodPost, "/votes", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", http.MethodPost, "/votes", `{"movieId":"tt1","address":"` + voter + `","voteType":true,"extra":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad address", http.MethodGet, "/streak?address=0x12", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad action", http.MethodPost, "/points", `{"address":"` + voter + `","type":"comment"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown user", http.MethodGet, "/points?address=" + voter, "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown reward", http.MethodPost, "/rewards/claim", `{"userId":"` + voter + `","rewardId":"nope"}`, http.StatusNotFound, "NOT_FOUND"},
		{"non-integer limit", http.MethodGet, "/points/history?address=" + voter + "&limit=ten", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodDelete, "/votes", "", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, env.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestInsufficientPointsIs422(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/points", fmt.Sprintf(`{"address":"%s","type":"login"}`, voter))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, router, http.MethodPost, "/rewards/claim", fmt.Sprintf(`{"userId":"%s","rewardId":"premium_badge"}`, voter))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INSUFFICIENT_POINTS", env.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupRouter(t)

	rec, env := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	router.ServeHTTP(metricsRec, req)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "moviemeter_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", store.ErrValidation), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrAlreadyClaimed, http.StatusConflict},
		{store.ErrInsufficientPoints, http.StatusUnprocessableEntity},
		{fmt.Errorf("query: %w: %w", store.ErrUpstreamUnavailable, fmt.Errorf("disk I/O error")), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
