// Package main is the entry point for the health-companion API server.
//
// main only reads configuration from the environment, creates the logger and
// starts the server. Everything else lives in internal/server and below.
//
// ENVIRONMENT:
//
//	PORT              listen port (default 8080)
//	DB_PATH           SQLite file (default data/health.db)
//	JWT_SECRET        token signing secret, required, 16+ characters
//	TRUST_PROXY       "true" to rate-limit on X-Forwarded-For / X-Real-IP
//	RATE_LIMIT_SWEEP  how often to drop expired rate counters (default 10m, "0" disables)
//	LOG_LEVEL         debug, info, warn or error (default info)
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/health-companion/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// === 2. READ CONFIGURATION ===
	port, err := strconv.Atoi(envOr("PORT", "8080"))
	if err != nil {
		logger.Error("invalid PORT value", slog.String("value", os.Getenv("PORT")))
		os.Exit(1)
	}

	sweep, err := time.ParseDuration(envOr("RATE_LIMIT_SWEEP", "10m"))
	if err != nil {
		logger.Error("invalid RATE_LIMIT_SWEEP value", slog.String("value", os.Getenv("RATE_LIMIT_SWEEP")))
		os.Exit(1)
	}

	trustProxy, _ := strconv.ParseBool(envOr("TRUST_PROXY", "false"))

	// JWT_SECRET must be a long random string:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	// === 3. DATABASE PATH ===
	dbPath := envOr("DB_PATH", "data/health.db")
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:           port,
		DBPath:         dbPath,
		JWTSecret:      jwtSecret,
		TrustProxy:     trustProxy,
		RateLimitSweep: sweep,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
