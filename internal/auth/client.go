package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v74/github"
)

// Client builds a go-github client authenticated for the given installation.
//
// The installation token is taken from the cache while still valid and
// refreshed otherwise, so the returned client always starts with a
// non-expired credential. The client is NOT guaranteed to outlive that
// token: a handler that runs longer than the token's lifetime must call
// Client again rather than keep the old handle.
func (a *Authority) Client(ctx context.Context, installationID int64) (*github.Client, error) {
	if installationID <= 0 {
		return nil, fmt.Errorf("auth: installation id is required")
	}

	authz, err := a.installationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}

	// The rate-limit transport (when configured) sits below the bearer-token
	// transport that WithAuthToken installs, so retried attempts carry the
	// token too.
	httpClient := &http.Client{Transport: a.apiTransport}

	client := github.NewClient(httpClient).WithAuthToken(authz.Token)
	if a.baseURL != DefaultBaseURL {
		client, err = client.WithEnterpriseURLs(a.baseURL, a.baseURL)
		if err != nil {
			return nil, fmt.Errorf("auth: configuring enterprise base url: %w", err)
		}
	}
	return client, nil
}
