// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root of the API process: it opens the
// database, builds services and handlers, and decides which middleware
// guards which route. main.go only reads configuration and calls New.
//
// DEPENDENCY INJECTION FLOW:
//
//	sqlite.DB ─→ AuthService  ─→ AuthHandler
//	          └→ SavedService ─→ SavedHandler
//	ratelimit.Limiter ─→ middleware.RateLimit (one per route class)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/health-companion/internal/auth"
	"github.com/sakif/health-companion/internal/handler"
	"github.com/sakif/health-companion/internal/middleware"
	"github.com/sakif/health-companion/internal/ratelimit"
	sqliteRepo "github.com/sakif/health-companion/internal/repository/sqlite"
	"github.com/sakif/health-companion/internal/service"
	"github.com/sakif/health-companion/internal/validation"
)

// Config holds server configuration.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// TrustProxy makes rate limiting key on X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool

	// RateLimitSweep is how often expired rate counters are dropped.
	// Zero disables sweeping.
	RateLimitSweep time.Duration

	// Tiers overrides ratelimit.DefaultTiers when non-nil.
	Tiers map[ratelimit.Class]ratelimit.Tier

	// PasswordCost overrides the bcrypt cost; zero keeps the production
	// default. Tests set bcrypt.MinCost.
	PasswordCost int
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it during graceful
// shutdown; callers that never Start (tests) call Close.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *ratelimit.Limiter
}

// New opens the database and wires every route.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("server: JWT secret is required")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tiers := cfg.Tiers
	if tiers == nil {
		tiers = ratelimit.DefaultTiers()
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: ratelimit.New(tiers),
	}

	passwords := auth.NewPasswordService()
	if cfg.PasswordCost > 0 {
		passwords = auth.NewPasswordServiceForTest(cfg.PasswordCost)
	}

	s.setupRoutes(tokens, passwords)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/register   auth tier        → create account
//	POST   /api/auth/login      auth tier        → issue token
//	POST   /api/auth/logout     generalApi tier  → clear cookie
//	POST   /api/auth/password   password tier    → change password (auth)
//	GET    /api/me              generalApi tier  → profile (auth)
//	GET    /api/saved/{kind}    generalApi tier  → saved ids (auth)
//	POST   /api/saved/{kind}    generalApi tier  → save one (auth)
//	DELETE /api/saved/{kind}    generalApi tier  → remove one (auth)
//
// PER-ROUTE ORDER:
// RateLimit → RequireAuth → Validate → handler. Over-limit callers are
// turned away before their token is checked or their body read.
func (s *Server) setupRoutes(tokens *auth.TokenService, passwords *auth.PasswordService) {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	savedService := service.NewSavedService(s.db, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	savedHandler := handler.NewSavedHandler(savedService, s.logger)

	limit := func(class ratelimit.Class) func(http.Handler) http.Handler {
		return middleware.RateLimit(s.limiter, class, s.logger)
	}
	validate := func(schema validation.Schema) func(http.Handler) http.Handler {
		return middleware.Validate(schema, s.logger)
	}
	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limit(ratelimit.ClassAuth), validate(handler.RegisterSchema)).
				Post("/register", authHandler.HandleRegister)
			r.With(limit(ratelimit.ClassAuth), validate(handler.LoginSchema)).
				Post("/login", authHandler.HandleLogin)
			r.With(limit(ratelimit.ClassGeneralAPI)).
				Post("/logout", authHandler.HandleLogout)
			r.With(limit(ratelimit.ClassPassword), requireAuth, validate(handler.ChangePasswordSchema)).
				Post("/password", authHandler.HandleChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(limit(ratelimit.ClassGeneralAPI), requireAuth)

			r.Get("/me", authHandler.HandleMe)
			r.Get("/saved/{kind}", savedHandler.HandleList)
			r.With(validate(handler.SaveItemSchema)).Post("/saved/{kind}", savedHandler.HandleSave)
			r.Delete("/saved/{kind}", savedHandler.HandleRemove)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Stop the rate-limit sweeper and close the database
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if s.config.RateLimitSweep > 0 {
		go s.sweepRateLimits(ctx, s.config.RateLimitSweep)
	}

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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("trustProxy", s.config.TrustProxy),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) sweepRateLimits(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Sweep(); n > 0 {
				s.logger.Debug("rate limit counters swept",
					slog.Int("removed", n),
					slog.Int("remaining", s.limiter.Len()),
				)
			}
		}
	}
}
