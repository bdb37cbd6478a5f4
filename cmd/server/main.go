// Package main is the entry point for the dashboard API server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (internal/config)
//  2. Create the logger
//  3. Start the server
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/repo-dashboard/internal/config"
	"github.com/sakif/repo-dashboard/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// config.Load reads an optional .env file, then the environment.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.SealKey == "" {
		logger.Warn("SESSION_SEAL_KEY not set; upstream access tokens are readable inside session tokens")
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
