package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestFromGitHubStatus_Mapping(t *testing.T) {
	cases := []struct {
		status   int
		sentinel error
	}{
		{http.StatusForbidden, ErrBadCredentials},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrUnknownObject},
		{http.StatusUnprocessableEntity, ErrGitHub},
		{http.StatusInternalServerError, ErrGitHub},
	}

	for _, tc := range cases {
		err := FromGitHubStatus(tc.status, []byte("body"))
		if !errors.Is(err, tc.sentinel) {
			t.Errorf("FromGitHubStatus(%d) sentinel = %v, want %v", tc.status, err.Err, tc.sentinel)
		}
		if err.Status != tc.status {
			t.Errorf("FromGitHubStatus(%d) status = %d", tc.status, err.Status)
		}
	}
}

func TestFromGitHubStatus_MessageIncludesBody(t *testing.T) {
	err := FromGitHubStatus(http.StatusForbidden, []byte(`{"message":"Forbidden"}`))
	if got := err.Error(); !strings.Contains(got, "Forbidden") {
		t.Errorf("message %q should include the response body", got)
	}
}

func TestAppError_UnwrapThroughWrapping(t *testing.T) {
	// Services wrap with %w at layer boundaries; errors.Is must still
	// find the sentinel through the chain.
	inner := Validation("bad signature")
	outer := fmt.Errorf("dispatching delivery: %w", inner)

	if !errors.Is(outer, ErrValidation) {
		t.Error("errors.Is should find ErrValidation through fmt.Errorf wrapping")
	}

	var appErr *AppError
	if !errors.As(outer, &appErr) {
		t.Fatal("errors.As should extract *AppError through wrapping")
	}
	if appErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", appErr.Status)
	}
}

func TestRateLimited_CarriesResponse(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests}
	err := RateLimited("retries exhausted", resp)
	if err.Response != resp {
		t.Error("RateLimited should carry the last response")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimited should wrap ErrRateLimited")
	}
}
