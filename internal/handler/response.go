package handler

// Response helpers shared by all endpoints. Every error body has the same
// shape:
//
//	{"error": "validation_error", "message": "Invalid webhook signature"}
//
// so callers always know what fields to expect regardless of status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/service"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before the first body write, hence the fixed order.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// The service layer speaks in apperror sentinels; this is the single place
// they turn into status codes. Anything without a recognised sentinel is a
// 500 with a generic message — raw internal errors never reach the client.
//
// A webhook handler failure is always a 500, no matter what error value the
// handler returned: a typed status inside a HandlerError belongs to some
// outbound GitHub call, not to the inbound delivery, and leaking it would
// make the delivery look malformed (stopping redelivery) or rate-limited.
func writeError(w http.ResponseWriter, err error) {
	var handlerErr *service.HandlerError
	if errors.As(err, &handlerErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}

		errorType := "internal_error"
		switch {
		case errors.Is(err, apperror.ErrValidation):
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrBadCredentials):
			errorType = "bad_credentials"
		case errors.Is(err, apperror.ErrUnauthorized):
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrUnknownObject):
			errorType = "not_found"
		case errors.Is(err, apperror.ErrRateLimited):
			errorType = "rate_limited"
		case errors.Is(err, apperror.ErrGitHub):
			errorType = "github_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
