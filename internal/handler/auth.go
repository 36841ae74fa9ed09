package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/auth"
	"github.com/sakif/githubapp/internal/service"
)

// AuthHandler exposes the GitHub OAuth login flow over HTTP.
type AuthHandler struct {
	oauth  *service.OAuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(oauth *service.OAuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{oauth: oauth, logger: logger}
}

// LoginResponse is the body of GET /auth/github/login.
type LoginResponse struct {
	AuthURL string `json:"auth_url"`
}

// SessionUser is the identity shape returned by GET /auth/github/user.
type SessionUser struct {
	Sub       string `json:"sub"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// HandleLogin is GET /auth/github/login. It returns the GitHub authorization
// URL for the client to redirect to; a fresh CSRF state is embedded in it.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LoginResponse{AuthURL: h.oauth.LoginURL()})
}

// HandleCallback is GET /auth/github/callback — the redirect target of the
// OAuth flow. On success it returns the GitHub profile and the session token.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.oauth.CompleteLogin(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUser is GET /auth/github/user. It validates the bearer session token
// and returns the identity encoded in it — no GitHub round trip.
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		writeError(w, apperror.Unauthorized("Missing session token"))
		return
	}

	claims, err := h.oauth.ValidateSession(token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionUser{
		Sub:       claims.Subject,
		Login:     claims.Login,
		Name:      claims.Name,
		Email:     claims.Email,
		AvatarURL: claims.AvatarURL,
	})
}
