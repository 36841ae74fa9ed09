package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"

	"github.com/sakif/githubapp/internal/apperror"
)

// InstallationAuthorization is a short-lived credential scoped to one
// installation. Immutable once constructed; the cache replaces entries on
// refresh rather than mutating them, so a handler holding a reference never
// sees the token change underneath it.
type InstallationAuthorization struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Expired reports whether the token can no longer be used.
// A nil ExpiresAt means a non-expiring token (test contexts) — never expired.
func (ia *InstallationAuthorization) Expired() bool {
	if ia.ExpiresAt == nil {
		return false
	}
	return !ia.ExpiresAt.After(time.Now())
}

// AccessToken exchanges a freshly minted app JWT for an installation access
// token, caches it, and returns it.
//
// Endpoint: POST {base}/app/installations/{id}/access_tokens
//
// Status mapping: 403 → ErrBadCredentials, 401 → ErrUnauthorized,
// 404 → ErrUnknownObject, any other non-2xx → ErrGitHub; the error message
// carries the response body.
func (a *Authority) AccessToken(ctx context.Context, installationID int64) (*InstallationAuthorization, error) {
	return a.accessToken(ctx, installationID, 0)
}

// AccessTokenForUser is AccessToken with a user id in the exchange body,
// scoping the token to a user-to-server context.
func (a *Authority) AccessTokenForUser(ctx context.Context, installationID, userID int64) (*InstallationAuthorization, error) {
	return a.accessToken(ctx, installationID, userID)
}

func (a *Authority) accessToken(ctx context.Context, installationID, userID int64) (*InstallationAuthorization, error) {
	appJWT, err := a.CreateJWT(0)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, installationID)

	var body io.Reader
	if userID > 0 {
		payload, err := json.Marshal(map[string]int64{"user_id": userID})
		if err != nil {
			return nil, fmt.Errorf("auth: encoding token request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("auth: building token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: requesting installation token: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.FromGitHubStatus(resp.StatusCode, respBody)
	}

	authz := &InstallationAuthorization{}
	if err := json.Unmarshal(respBody, authz); err != nil {
		return nil, fmt.Errorf("auth: decoding token response: %w", err)
	}

	a.mu.Lock()
	a.tokens[installationID] = authz
	a.mu.Unlock()

	a.logger.Debug("installation token refreshed",
		slog.Int64("installationID", installationID),
	)
	return authz, nil
}

// installationToken returns a cached, non-expired authorization or fetches a
// fresh one. Concurrent callers for the same installation may both see an
// expired entry and both refresh; the redundant exchange is harmless and
// cheaper than single-flighting. What is never allowed is handing out an
// entry whose Expired() is true.
func (a *Authority) installationToken(ctx context.Context, installationID int64) (*InstallationAuthorization, error) {
	a.mu.Lock()
	cached := a.tokens[installationID]
	a.mu.Unlock()

	if cached != nil && !cached.Expired() {
		return cached, nil
	}
	return a.AccessToken(ctx, installationID)
}

// ListInstallations returns one page of the App's installations, fetched
// with the app JWT (not an installation token). perPage and page are passed
// through when positive.
func (a *Authority) ListInstallations(ctx context.Context, perPage, page int) ([]*github.Installation, error) {
	appJWT, err := a.CreateJWT(0)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/app/installations", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building installations request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	q := req.URL.Query()
	if perPage > 0 {
		q.Set("per_page", fmt.Sprint(perPage))
	}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: listing installations: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: reading installations response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.FromGitHubStatus(resp.StatusCode, respBody)
	}

	var installations []*github.Installation
	if err := json.Unmarshal(respBody, &installations); err != nil {
		return nil, fmt.Errorf("auth: decoding installations response: %w", err)
	}
	return installations, nil
}
