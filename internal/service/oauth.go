package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/auth"
)

// OAuthService orchestrates the GitHub OAuth login flow: issue a CSRF state,
// redeem it on the callback, exchange the code, mint a session token.
type OAuthService struct {
	provider *auth.GitHubProvider
	states   *auth.StateStore
	sessions *auth.SessionService
	logger   *slog.Logger
}

// NewOAuthService wires the OAuth flow.
func NewOAuthService(
	provider *auth.GitHubProvider,
	states *auth.StateStore,
	sessions *auth.SessionService,
	logger *slog.Logger,
) *OAuthService {
	return &OAuthService{
		provider: provider,
		states:   states,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginResult is returned after a successful callback: the GitHub profile
// and the stateless session token the client authenticates with from now on.
type LoginResult struct {
	User         *auth.GitHubUser `json:"user"`
	SessionToken string           `json:"session_token"`
}

// LoginURL issues a fresh state nonce and returns the GitHub authorization
// URL carrying it.
func (s *OAuthService) LoginURL() string {
	state := s.states.Issue()
	return s.provider.AuthURL(state)
}

// CompleteLogin handles the OAuth callback.
//
// The state nonce must match one we issued and not have been used before —
// an unknown, replayed, or stale state is rejected as a validation error
// before any call to GitHub. The code exchange and profile fetch happen
// server-to-server; their failures are internal, not the client's fault.
func (s *OAuthService) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" {
		return nil, apperror.Validation("Missing authorization code")
	}
	if !s.states.Consume(state) {
		s.logger.Warn("oauth callback with invalid state")
		return nil, apperror.Validation("Invalid or expired state parameter")
	}

	user, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("completing oauth login: %w", err)
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issuing session for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in via github",
		slog.Int64("userID", user.ID),
		slog.String("login", user.Login),
	)

	return &LoginResult{User: user, SessionToken: token}, nil
}

// ValidateSession validates a session token and returns its claims.
// Invalid or expired tokens come back as unauthorized errors.
func (s *OAuthService) ValidateSession(token string) (*auth.SessionClaims, error) {
	claims, err := s.sessions.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid session token")
	}
	return claims, nil
}
