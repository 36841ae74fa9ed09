// Package apperror defines the error taxonomy shared by every layer of the
// framework.
//
// ERROR DESIGN:
// Each failure category has a sentinel error (ErrValidation, ErrUnauthorized,
// ...) that callers match with errors.Is, plus an *AppError wrapper that
// carries the human-readable message, the HTTP-equivalent status, and — for
// failures that originated at the GitHub API — the raw response body and the
// *http.Response itself.
//
// The sentinels are the contract; the wrapper is the payload. Handlers map
// sentinels to HTTP status codes, services wrap and re-wrap with %w, and
// errors.Is still finds the sentinel anywhere in the chain.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors — one per failure category in the taxonomy.
var (
	ErrValidation     = errors.New("validation error")      // malformed delivery: signature, headers, content type
	ErrBadCredentials = errors.New("bad credentials")       // 403 from GitHub
	ErrUnauthorized   = errors.New("unauthorized")          // 401 from GitHub, or a missing/invalid session
	ErrUnknownObject  = errors.New("unknown object")        // 404 from GitHub
	ErrRateLimited    = errors.New("rate limit exceeded")   // retries exhausted
	ErrGitHub         = errors.New("github request failed") // any other non-2xx
)

// AppError is the concrete error type carried through the call chain.
type AppError struct {
	Err      error          // sentinel identifying the category
	Message  string         // human-readable description
	Status   int            // HTTP-equivalent status code
	Body     []byte         // raw response body, when GitHub answered
	Response *http.Response // last response, for rate-limit exhaustion
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation returns an AppError for a malformed delivery or request.
// HTTP handlers map this to 400 Bad Request.
func Validation(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// Unauthorized returns an AppError for a missing or invalid credential.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// RateLimited returns an AppError raised after the retry budget is spent.
// resp is the last rate-limited response observed, so callers can inspect
// the limit headers; it may be nil.
func RateLimited(message string, resp *http.Response) *AppError {
	return &AppError{
		Err:      ErrRateLimited,
		Message:  message,
		Status:   http.StatusTooManyRequests,
		Response: resp,
	}
}

// FromGitHubStatus maps a non-2xx GitHub API status to the taxonomy:
// 403 → ErrBadCredentials, 401 → ErrUnauthorized, 404 → ErrUnknownObject,
// anything else → ErrGitHub. The message always includes the response body —
// GitHub's bodies name the failing credential or endpoint, which is the only
// way to debug an app-auth problem.
func FromGitHubStatus(status int, body []byte) *AppError {
	sentinel := ErrGitHub
	switch status {
	case http.StatusForbidden:
		sentinel = ErrBadCredentials
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusNotFound:
		sentinel = ErrUnknownObject
	}

	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf("github returned status %d: %s", status, body),
		Status:  status,
		Body:    body,
	}
}
