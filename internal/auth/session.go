package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionIssuer is baked into every session token and checked on validation,
// so tokens minted by unrelated apps sharing a secret are still rejected.
const sessionIssuer = "githubapp"

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionClaims is the payload of a session token.
//
// Sessions are STATELESS: validity is determined purely by the HS256
// signature and the exp claim — there is no server-side session table to
// look up, and nothing to revoke short of rotating the secret.
type SessionClaims struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	jwt.RegisteredClaims
}

// SessionService issues and validates session tokens.
// It holds the HMAC secret used for both operations.
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a SessionService with the given signing secret.
// The secret should be at least 32 bytes of random data in production;
// anything under 16 characters is rejected outright.
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue mints a session token for an authenticated GitHub user.
// The sub claim carries GitHub's numeric user id as a string.
func (s *SessionService) Issue(user *GitHubUser) (string, error) {
	now := time.Now()

	claims := SessionClaims{
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token, returning its claims.
//
// jwt.WithValidMethods pins HS256 — without it a token declaring alg=none
// or an RS256 token could sneak through (algorithm confusion).
func (s *SessionService) Validate(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: session expired")
		}
		return nil, fmt.Errorf("auth: invalid session token: %w", err)
	}
	return claims, nil
}
