package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"moviemeter-go/internal/api"
	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

// Handler exposes the rewards service over HTTP
type Handler struct {
	svc *api.Service
}

func NewHandler(svc *api.Service) *Handler {
	return &Handler{svc: svc}
}

// NewRouter registers every route. m and gatherer may be nil, which disables metrics.
func NewRouter(svc *api.Service, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	h := NewHandler(svc)

	r := mux.NewRouter()
	r.Use(loggerMiddleware)
	if m != nil {
		r.Use(m.Middleware)
	}

	// Votes
	r.HandleFunc("/votes", h.CastVote).Methods(http.MethodPost)
	r.HandleFunc("/movies/{movieId}/votes", h.GetMovieVotes).Methods(http.MethodGet)

	// Aggregations
	r.HandleFunc("/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/streak", h.GetStreak).Methods(http.MethodGet)

	// Points
	r.HandleFunc("/points", h.AwardPoints).Methods(http.MethodPost)
	r.HandleFunc("/points", h.GetPoints).Methods(http.MethodGet)
	r.HandleFunc("/points/history", h.GetPointsHistory).Methods(http.MethodGet)

	// Rewards
	r.HandleFunc("/rewards", h.ListRewards).Methods(http.MethodGet)
	r.HandleFunc("/rewards/claim", h.ClaimReward).Methods(http.MethodPost)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, APIResponse{Success: false, Error: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Success: false, Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})
	return r
}

func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.CastVote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusCreated, result)
}

func (h *Handler) GetMovieVotes(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetMovieVotes(r.Context(), mux.Vars(r)["movieId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLeaderboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStreak(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req models.AwardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.AwardPoints(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusCreated, result)
}

func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetPoints(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.GetPointsHistory(r.Context(), query.Get("address"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) ListRewards(w http.ResponseWriter, _ *http.Request) {
	success(w, http.StatusOK, h.svc.ListRewards())
}

func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.ClaimReward(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	success(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Error:   "unhealthy",
			Code:    "UPSTREAM_UNAVAILABLE",
		})
		return
	}
	success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads one JSON object, rejecting unknown fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", store.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body: %v", store.ErrValidation, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", store.ErrValidation)
	}
	return nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", store.ErrValidation, name)
	}
	return v, nil
}
