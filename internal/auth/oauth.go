package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

// GitHubUser is the portion of the GitHub /user API response the framework
// cares about. GitHub returns a much larger object; we only unmarshal the
// fields that end up in session claims.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"` // empty if hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow: build the authorization URL, exchange the callback code for an
// access token server-to-server, then fetch the user's profile with it.
//
// The code→token exchange is where both failure modes of the token endpoint
// surface: oauth2 turns a non-2xx response AND a 200 carrying an "error"
// JSON field into a *oauth2.RetrieveError, so Exchange failing covers both.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
}

// NewGitHubProvider creates a provider against public GitHub.
//
// redirectURL must exactly match the "Authorization callback URL" configured
// on the OAuth App. Scopes: read:user for the profile, user:email so the
// email list is reachable when the profile email is hidden.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return NewGitHubProviderWithEndpoints(clientID, clientSecret, redirectURL,
		oauthgithub.Endpoint, DefaultBaseURL)
}

// NewGitHubProviderWithEndpoints creates a provider with explicit OAuth and
// API endpoints — for enterprise deployments and tests.
func NewGitHubProviderWithEndpoints(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, apiBaseURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
	}
}

// AuthURL returns the GitHub authorization URL carrying the CSRF state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a GitHub user profile.
//
// When the profile hides the email, the user:email scope lets us fall back
// to /user/emails and take the primary address, so session claims are as
// complete as the user's privacy settings allow.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging oauth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that injects the
	// bearer token into every request.
	client := p.config.Client(ctx, oauthToken)

	user, err := p.fetchUser(client)
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		// Best effort — a missing email list is not a login failure.
		if email, err := p.fetchPrimaryEmail(client); err == nil {
			user.Email = email
		}
	}
	return user, nil
}

func (p *GitHubProvider) fetchUser(client *http.Client) (*GitHubUser, error) {
	resp, err := client.Get(p.apiBaseURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling github /user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: github /user returned status %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding github /user response: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: github returned an invalid user (id = 0)")
	}
	return &user, nil
}

func (p *GitHubProvider) fetchPrimaryEmail(client *http.Client) (string, error) {
	resp, err := client.Get(p.apiBaseURL + "/user/emails")
	if err != nil {
		return "", fmt.Errorf("auth: calling github /user/emails: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: github /user/emails returned status %d", resp.StatusCode)
	}

	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("auth: decoding github /user/emails response: %w", err)
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}
