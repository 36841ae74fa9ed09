package server

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults applied by FillFromEnv when neither the field nor its environment
// variable is set.
const (
	DefaultPort              = 8080
	DefaultWebhookPath       = "/"
	DefaultRateLimitRetries  = 3
	DefaultRateLimitMaxSleep = 60 * time.Second
)

// Config holds everything the server needs to run. Fields set in code win
// over the environment: FillFromEnv only touches fields still at their zero
// value, so embedding applications can hardcode what they want and let
// deployment supply the rest.
type Config struct {
	Port int // PORT

	// App credentials. When either is missing the server still runs, but
	// webhook handlers get no API clients.
	AppID      int64  // GITHUBAPP_ID
	PrivateKey []byte // GITHUBAPP_PRIVATE_KEY (PEM) or GITHUBAPP_PRIVATE_KEY_PATH

	WebhookSecret string // GITHUBAPP_WEBHOOK_SECRET; empty disables verification
	WebhookPath   string // GITHUBAPP_WEBHOOK_PATH, default "/"
	GitHubAPIURL  string // GITHUBAPP_URL, for GitHub Enterprise

	// OAuth login. All three plus SessionSecret must be set for the
	// /auth/github routes to be registered.
	OAuthClientID     string // GITHUBAPP_OAUTH_CLIENT_ID
	OAuthClientSecret string // GITHUBAPP_OAUTH_CLIENT_SECRET
	OAuthRedirectURL  string // GITHUBAPP_OAUTH_REDIRECT_URI

	SessionSecret string        // GITHUBAPP_SESSION_SECRET, min 16 chars
	SessionTTL    time.Duration // zero means the auth package default (24h)
	StateTTL      time.Duration // zero means the auth package default (10m)

	// RateLimitRetries is how often a rate-limited API call is retried.
	// Zero means the default of 3; set a negative value (or the env var to
	// -1) to disable retries entirely.
	RateLimitRetries  int           // GITHUBAPP_RATE_LIMIT_RETRIES
	RateLimitMaxSleep time.Duration // GITHUBAPP_RATE_LIMIT_MAX_SLEEP (seconds)

	DBPath string // DB_PATH; empty disables the delivery audit log
}

// FillFromEnv populates unset fields from the environment and applies
// defaults. It returns an error only for values that are present but
// unparseable — missing optional config is not an error.
func (c *Config) FillFromEnv() error {
	if c.Port == 0 {
		port, err := envInt("PORT", DefaultPort)
		if err != nil {
			return err
		}
		c.Port = port
	}

	if c.AppID == 0 {
		if v := os.Getenv("GITHUBAPP_ID"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("server: invalid GITHUBAPP_ID %q: %w", v, err)
			}
			c.AppID = id
		}
	}

	if len(c.PrivateKey) == 0 {
		if v := os.Getenv("GITHUBAPP_PRIVATE_KEY"); v != "" {
			c.PrivateKey = []byte(v)
		} else if path := os.Getenv("GITHUBAPP_PRIVATE_KEY_PATH"); path != "" {
			pem, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("server: reading GITHUBAPP_PRIVATE_KEY_PATH: %w", err)
			}
			c.PrivateKey = pem
		}
	}

	if c.WebhookSecret == "" {
		c.WebhookSecret = os.Getenv("GITHUBAPP_WEBHOOK_SECRET")
	}
	if c.WebhookPath == "" {
		c.WebhookPath = os.Getenv("GITHUBAPP_WEBHOOK_PATH")
	}
	if c.WebhookPath == "" {
		c.WebhookPath = DefaultWebhookPath
	}
	if c.GitHubAPIURL == "" {
		c.GitHubAPIURL = os.Getenv("GITHUBAPP_URL")
	}

	if c.OAuthClientID == "" {
		c.OAuthClientID = os.Getenv("GITHUBAPP_OAUTH_CLIENT_ID")
	}
	if c.OAuthClientSecret == "" {
		c.OAuthClientSecret = os.Getenv("GITHUBAPP_OAUTH_CLIENT_SECRET")
	}
	if c.OAuthRedirectURL == "" {
		c.OAuthRedirectURL = os.Getenv("GITHUBAPP_OAUTH_REDIRECT_URI")
	}
	if c.SessionSecret == "" {
		c.SessionSecret = os.Getenv("GITHUBAPP_SESSION_SECRET")
	}

	if c.RateLimitRetries == 0 {
		retries, err := envInt("GITHUBAPP_RATE_LIMIT_RETRIES", DefaultRateLimitRetries)
		if err != nil {
			return err
		}
		c.RateLimitRetries = retries
	}
	if c.RateLimitMaxSleep == 0 {
		secs, err := envInt("GITHUBAPP_RATE_LIMIT_MAX_SLEEP", int(DefaultRateLimitMaxSleep/time.Second))
		if err != nil {
			return err
		}
		c.RateLimitMaxSleep = time.Duration(secs) * time.Second
	}

	if c.DBPath == "" {
		c.DBPath = os.Getenv("DB_PATH")
	}

	return nil
}

// hasAppCredentials reports whether the App auth side can be wired.
func (c *Config) hasAppCredentials() bool {
	return c.AppID != 0 && len(c.PrivateKey) > 0
}

// hasOAuth reports whether the OAuth login side can be wired.
func (c *Config) hasOAuth() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != "" && c.SessionSecret != ""
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("server: invalid %s %q: %w", name, v, err)
	}
	return n, nil
}
