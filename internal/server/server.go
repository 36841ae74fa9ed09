// Package server is the composition root: it wires the credential layer, the
// dispatcher, the OAuth flow, and the audit log into one chi router, and owns
// the HTTP lifecycle.
//
// The wiring is conditional on configuration. Without app credentials the
// webhook endpoint still verifies and dispatches, but handlers get no API
// clients; without OAuth config the /auth routes are not registered; without
// a database path there is no audit log. An embedding application supplies a
// populated hook.Registry and whatever config it has, and gets the largest
// server that config supports.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/githubapp/internal/auth"
	"github.com/sakif/githubapp/internal/handler"
	"github.com/sakif/githubapp/internal/hook"
	"github.com/sakif/githubapp/internal/middleware"
	"github.com/sakif/githubapp/internal/ratelimit"
	"github.com/sakif/githubapp/internal/repository"
	sqliteRepo "github.com/sakif/githubapp/internal/repository/sqlite"
	"github.com/sakif/githubapp/internal/service"
)

// Server is the assembled application.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB // nil when no DBPath is configured
}

// New wires the dependency graph and builds the router. The registry holds
// the application's webhook subscriptions and must be fully populated before
// New is called — it is read-only afterwards.
func New(cfg Config, registry *hook.Registry, logger *slog.Logger) (*Server, error) {
	if registry == nil {
		registry = hook.NewRegistry()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(logger))

	// Rate-limit guard and transport, shared by every API client the
	// authority hands out.
	guard := ratelimit.New(cfg.RateLimitRetries, cfg.RateLimitMaxSleep, logger)
	transport := &ratelimit.Transport{Guard: guard}

	var authority *auth.Authority
	if cfg.hasAppCredentials() {
		var err error
		authority, err = auth.NewAuthority(auth.AuthorityConfig{
			AppID:        cfg.AppID,
			PrivateKey:   cfg.PrivateKey,
			BaseURL:      cfg.GitHubAPIURL,
			APITransport: transport,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring app authority: %w", err)
		}
	} else {
		logger.Warn("app credentials not configured — webhook handlers get no API clients")
	}

	var deliveries repository.DeliveryRepository
	if cfg.DBPath != "" {
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.db = db
		deliveries = db
	}

	dispatcher := service.NewDispatcher(registry, []byte(cfg.WebhookSecret), authority, deliveries, logger)
	webhookHandler := handler.NewWebhookHandler(dispatcher, logger)
	s.router.Post(cfg.WebhookPath, webhookHandler.HandleWebhook)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.hasOAuth() {
		sessions, err := auth.NewSessionService(cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			s.closeDB()
			return nil, fmt.Errorf("configuring sessions: %w", err)
		}

		provider := auth.NewGitHubProvider(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthRedirectURL)
		states := auth.NewStateStore(cfg.StateTTL)
		oauthSvc := service.NewOAuthService(provider, states, sessions, logger)
		authHandler := handler.NewAuthHandler(oauthSvc, logger)

		s.router.Route("/auth/github", func(r chi.Router) {
			r.Get("/login", authHandler.HandleLogin)
			r.Get("/callback", authHandler.HandleCallback)
			r.Get("/user", authHandler.HandleUser)
		})

		if deliveries != nil {
			deliveryHandler := handler.NewDeliveryHandler(deliveries, logger)
			s.router.Group(func(r chi.Router) {
				r.Use(auth.RequireSession(sessions))
				r.Get("/api/deliveries", deliveryHandler.HandleList)
			})
		}
	} else {
		logger.Warn("oauth not configured — /auth/github routes disabled")
	}

	return s, nil
}

// Router exposes the assembled router, for tests and for embedding the
// framework under a larger mux.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30 seconds,
// close the database.
func (s *Server) Start() error {
	defer s.closeDB()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("webhookPath", s.config.WebhookPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) closeDB() {
	if s.db != nil {
		s.db.Close()
	}
}
