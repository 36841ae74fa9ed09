package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/githubapp/internal/apperror"
)

// testKeyPEM generates a throwaway RSA key for signing app JWTs in tests.
// Generating at runtime avoids checking a private key into the repo, even a
// fake one.
func testKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return pemBytes, key
}

func newTestAuthority(t *testing.T, baseURL string) *Authority {
	t.Helper()
	pemBytes, _ := testKeyPEM(t)
	a, err := NewAuthority(AuthorityConfig{
		AppID:      123,
		PrivateKey: pemBytes,
		BaseURL:    baseURL,
	})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return a
}

func TestNewAuthority_RejectsBadKey(t *testing.T) {
	_, err := NewAuthority(AuthorityConfig{AppID: 123, PrivateKey: []byte("not a pem")})
	if err == nil {
		t.Fatal("NewAuthority should reject a non-PEM key")
	}
}

func TestNewAuthority_RequiresAppID(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)
	_, err := NewAuthority(AuthorityConfig{PrivateKey: pemBytes})
	if err == nil {
		t.Fatal("NewAuthority should require an app id")
	}
}

func TestCreateJWT_ClaimsAndSignature(t *testing.T) {
	pemBytes, key := testKeyPEM(t)
	a, err := NewAuthority(AuthorityConfig{AppID: 123, PrivateKey: pemBytes})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}

	signed, err := a.CreateJWT(5 * time.Minute)
	if err != nil {
		t.Fatalf("CreateJWT: %v", err)
	}

	// Verify with the matching public key and inspect the claims.
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("parsing minted jwt: %v", err)
	}

	if iss, _ := claims["iss"].(float64); int64(iss) != 123 {
		t.Errorf("iss = %v, want 123", claims["iss"])
	}
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	if exp-iat != (5 * time.Minute).Seconds() {
		t.Errorf("exp-iat = %v, want 300", exp-iat)
	}
}

func TestInstallationAuthorization_Expired(t *testing.T) {
	if (&InstallationAuthorization{Token: "t"}).Expired() {
		t.Error("nil ExpiresAt should never be expired")
	}

	future := time.Now().Add(time.Hour)
	if (&InstallationAuthorization{Token: "t", ExpiresAt: &future}).Expired() {
		t.Error("future ExpiresAt should not be expired")
	}

	past := time.Now().Add(-time.Hour)
	if !(&InstallationAuthorization{Token: "t", ExpiresAt: &past}).Expired() {
		t.Error("past ExpiresAt should be expired")
	}
}

func TestAccessToken_SuccessAndCache(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	fetches := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/installations/456/access_tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); len(auth) < 10 || auth[:7] != "Bearer " {
			t.Errorf("missing bearer jwt, got %q", auth)
		}
		fetches++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"token":      "ghs_testtoken",
			"expires_at": expires.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	a := newTestAuthority(t, srv.URL)

	authz, err := a.AccessToken(context.Background(), 456)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if authz.Token != "ghs_testtoken" {
		t.Errorf("token = %q", authz.Token)
	}
	if authz.ExpiresAt == nil || !authz.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %v, want %v", authz.ExpiresAt, expires)
	}

	// installationToken must reuse the cached, still-valid entry.
	cached, err := a.installationToken(context.Background(), 456)
	if err != nil {
		t.Fatalf("installationToken: %v", err)
	}
	if cached != authz {
		t.Error("installationToken should return the cached authorization")
	}
	if fetches != 1 {
		t.Errorf("exchange endpoint hit %d times, want 1", fetches)
	}
}

func TestInstallationToken_RefreshesExpiredEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"token": "ghs_fresh"})
	}))
	defer srv.Close()

	a := newTestAuthority(t, srv.URL)

	// Seed the cache with an expired authorization.
	past := time.Now().Add(-time.Minute)
	a.mu.Lock()
	a.tokens[456] = &InstallationAuthorization{Token: "ghs_stale", ExpiresAt: &past}
	a.mu.Unlock()

	authz, err := a.installationToken(context.Background(), 456)
	if err != nil {
		t.Fatalf("installationToken: %v", err)
	}
	if authz.Token != "ghs_fresh" {
		t.Errorf("token = %q, want refreshed ghs_fresh", authz.Token)
	}
	if authz.Expired() {
		t.Error("handed-out token must not be expired")
	}
}

func TestAccessToken_UserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if body["user_id"] != 789 {
			t.Errorf("user_id = %d, want 789", body["user_id"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"token": "ghs_user"})
	}))
	defer srv.Close()

	a := newTestAuthority(t, srv.URL)
	if _, err := a.AccessTokenForUser(context.Background(), 456, 789); err != nil {
		t.Fatalf("AccessTokenForUser: %v", err)
	}
}

func TestAccessToken_StatusMapping(t *testing.T) {
	cases := []struct {
		status   int
		sentinel error
	}{
		{http.StatusForbidden, apperror.ErrBadCredentials},
		{http.StatusNotFound, apperror.ErrUnknownObject},
		{http.StatusUnauthorized, apperror.ErrUnauthorized},
		{http.StatusUnprocessableEntity, apperror.ErrGitHub},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"message":"nope"}`))
		}))

		a := newTestAuthority(t, srv.URL)
		_, err := a.AccessToken(context.Background(), 456)
		if !errors.Is(err, tc.sentinel) {
			t.Errorf("status %d: error = %v, want sentinel %v", tc.status, err, tc.sentinel)
		}
		srv.Close()
	}
}

func TestListInstallations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/installations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "50" {
			t.Errorf("per_page = %q, want 50", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q, want 2", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1}, {"id": 2}})
	}))
	defer srv.Close()

	a := newTestAuthority(t, srv.URL)
	installations, err := a.ListInstallations(context.Background(), 50, 2)
	if err != nil {
		t.Fatalf("ListInstallations: %v", err)
	}
	if len(installations) != 2 {
		t.Fatalf("got %d installations, want 2", len(installations))
	}
	if installations[0].GetID() != 1 || installations[1].GetID() != 2 {
		t.Errorf("installation ids = %d, %d", installations[0].GetID(), installations[1].GetID())
	}
}

func TestListInstallations_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorized"))
	}))
	defer srv.Close()

	a := newTestAuthority(t, srv.URL)
	_, err := a.ListInstallations(context.Background(), 0, 0)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}
