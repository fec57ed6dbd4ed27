package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"moviemeter-go/internal/store"

	"go.uber.org/zap"
)

// APIResponse is the envelope every endpoint responds with
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

func success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{store.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{store.ErrAlreadyClaimed, http.StatusConflict, "ALREADY_CLAIMED"},
	{store.ErrDuplicateVote, http.StatusConflict, "DUPLICATE_VOTE"},
	{store.ErrDuplicateTransaction, http.StatusConflict, "DUPLICATE_TRANSACTION"},
	{store.ErrInsufficientPoints, http.StatusUnprocessableEntity, "INSUFFICIENT_POINTS"},
	{store.ErrConcurrentModification, http.StatusServiceUnavailable, "CONCURRENT_MODIFICATION"},
	{store.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
}

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeError responds with the mapped status. Client errors carry their
// message; server errors are logged and answered with a generic one.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		msg = "service temporarily unavailable, please retry"
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeJSON(w, status, APIResponse{Success: false, Error: msg, Code: code})
}
