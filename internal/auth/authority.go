// Package auth holds every credential primitive in the framework:
//
//   - Authority        — authenticates AS THE APP: RS256 JWTs, installation
//     access tokens, and authenticated API clients
//   - SessionService   — stateless HS256 session tokens for end users
//   - GitHubProvider   — the OAuth2 Authorization Code flow against GitHub
//   - StateStore       — single-use CSRF nonces for the OAuth flow
//   - RequireSession   — middleware protecting user-facing endpoints
//
// Three unrelated trust domains meet here (app key, webhook-adjacent
// installation tokens, user sessions); keeping them in one package makes the
// boundaries easy to audit.
package auth

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultBaseURL is the public GitHub API root. Enterprise deployments
// override it via AuthorityConfig.BaseURL.
const DefaultBaseURL = "https://api.github.com"

// DefaultJWTExpiry is the lifetime of a minted app JWT. GitHub rejects
// anything above ten minutes; ten is the conventional maximum.
const DefaultJWTExpiry = 10 * time.Minute

// AuthorityConfig configures an Authority.
type AuthorityConfig struct {
	AppID      int64
	PrivateKey []byte // PEM-encoded RSA key (PKCS#1 or PKCS#8)
	BaseURL    string // defaults to DefaultBaseURL

	// HTTPClient performs the JWT-bearer calls (token exchange, listing
	// installations). Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// APITransport, when set, becomes the base transport of every
	// installation client handed to webhook handlers. The server wires the
	// rate-limit retrying transport in here.
	APITransport http.RoundTripper

	Logger *slog.Logger
}

// Authority authenticates as the installed GitHub App.
//
// It mints short-lived application JWTs, exchanges them for installation
// access tokens, and builds API clients bound to those tokens. Tokens are
// cached per installation id and replaced — never mutated — on refresh.
type Authority struct {
	appID        int64
	key          *rsa.PrivateKey
	baseURL      string
	httpClient   *http.Client
	apiTransport http.RoundTripper
	logger       *slog.Logger

	// mu guards tokens. Reads take the lock too — entries are replaced
	// wholesale, so the critical sections are a map access each.
	mu     sync.Mutex
	tokens map[int64]*InstallationAuthorization
}

// NewAuthority parses the private key and returns a ready Authority.
func NewAuthority(cfg AuthorityConfig) (*Authority, error) {
	if cfg.AppID == 0 {
		return nil, fmt.Errorf("auth: app id is required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing app private key: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Authority{
		appID:        cfg.AppID,
		key:          key,
		baseURL:      baseURL,
		httpClient:   httpClient,
		apiTransport: cfg.APITransport,
		logger:       logger,
		tokens:       make(map[int64]*InstallationAuthorization),
	}, nil
}

// CreateJWT mints an application JWT with claims
// {iat: now, exp: now+expiry, iss: app id}, signed RS256 with the app key.
// A non-positive expiry uses DefaultJWTExpiry.
//
// This token authenticates the APP itself — it is only valid against the
// /app/* endpoints, never for repository API calls.
func (a *Authority) CreateJWT(expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultJWTExpiry
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
		"iss": a.appID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing app jwt: %w", err)
	}
	return signed, nil
}
