package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write
// session claims in a request context — no collision with other packages.
type contextKey string

const claimsKey contextKey = "sessionClaims"

// RequireSession is middleware that protects an endpoint with a bearer
// session token.
//
// It reads "Authorization: Bearer <token>", validates the token, and stores
// the claims in the request context. A missing token yields 401 with
// "Missing session token"; an invalid or expired one yields a plain 401.
//
// This is the framework's "current user" dependency — route any endpoint
// through it and read the identity with ClaimsFromContext.
func RequireSession(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized","message":"Missing session token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := sessions.Validate(token)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"Invalid session token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves the validated session claims.
// Returns (nil, false) when the request did not pass RequireSession.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is absent or not a bearer credential.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
