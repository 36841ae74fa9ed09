package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/auth"
)

// fakeGitHub stands in for both the OAuth token endpoint and the REST API.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.FormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error": "bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "gho_test", "token_type": "bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "login": "octocat", "name": "The Octocat", "email": "octo@example.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuthService(t *testing.T) (*OAuthService, *auth.StateStore) {
	t.Helper()
	srv := fakeGitHub(t)

	provider := auth.NewGitHubProviderWithEndpoints("client-id", "client-secret",
		"http://localhost/auth/github/callback",
		oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		},
		srv.URL,
	)
	states := auth.NewStateStore(time.Minute)
	sessions, err := auth.NewSessionService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return NewOAuthService(provider, states, sessions, testLogger()), states
}

func TestLoginURL_CarriesIssuedState(t *testing.T) {
	svc, states := newTestOAuthService(t)

	url := svc.LoginURL()
	if url == "" {
		t.Fatal("LoginURL returned empty")
	}
	if states.Len() != 1 {
		t.Errorf("state store holds %d nonces, want 1", states.Len())
	}
}

func TestCompleteLogin_FullFlow(t *testing.T) {
	svc, states := newTestOAuthService(t)

	state := states.Issue()
	result, err := svc.CompleteLogin(context.Background(), "good-code", state)
	if err != nil {
		t.Fatalf("CompleteLogin: %v", err)
	}

	if result.User.Login != "octocat" || result.User.ID != 42 {
		t.Errorf("user = %+v", result.User)
	}
	if result.SessionToken == "" {
		t.Fatal("no session token issued")
	}

	claims, err := svc.ValidateSession(result.SessionToken)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if claims.Login != "octocat" || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestCompleteLogin_MissingCode(t *testing.T) {
	svc, states := newTestOAuthService(t)

	_, err := svc.CompleteLogin(context.Background(), "", states.Issue())
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("CompleteLogin = %v, want ErrValidation", err)
	}
}

func TestCompleteLogin_UnknownState(t *testing.T) {
	svc, _ := newTestOAuthService(t)

	_, err := svc.CompleteLogin(context.Background(), "good-code", "forged-state")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("CompleteLogin = %v, want ErrValidation", err)
	}
}

func TestCompleteLogin_StateIsSingleUse(t *testing.T) {
	svc, states := newTestOAuthService(t)

	state := states.Issue()
	if _, err := svc.CompleteLogin(context.Background(), "good-code", state); err != nil {
		t.Fatalf("first CompleteLogin: %v", err)
	}

	// Replaying the same state must fail even with a valid code.
	_, err := svc.CompleteLogin(context.Background(), "good-code", state)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("replayed CompleteLogin = %v, want ErrValidation", err)
	}
}

func TestCompleteLogin_ExchangeFailure(t *testing.T) {
	svc, states := newTestOAuthService(t)

	// The fake token endpoint answers a bad code with an error field in a
	// 200 response; oauth2 still reports it as an exchange failure.
	_, err := svc.CompleteLogin(context.Background(), "bad-code", states.Issue())
	if err == nil {
		t.Fatal("CompleteLogin should fail when the exchange fails")
	}
	if errors.Is(err, apperror.ErrValidation) {
		t.Errorf("exchange failure = %v; should be internal, not a validation error", err)
	}
}

func TestValidateSession_Invalid(t *testing.T) {
	svc, _ := newTestOAuthService(t)

	_, err := svc.ValidateSession("not-a-token")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("ValidateSession = %v, want ErrUnauthorized", err)
	}
}
