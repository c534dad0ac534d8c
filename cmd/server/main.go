// Package main is the entry point for the Blanko console.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (config file, then environment variables)
//  2. Create the logger
//  3. Start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, etc.).
package main

import (
	"log/slog"
	"os"

	// Timezone names from the blog settings must resolve even on hosts
	// without a zoneinfo database.
	_ "time/tzdata"

	"github.com/bytetopia/blanko-console/internal/config"
	"github.com/bytetopia/blanko-console/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// -config flag, then CONFIG_PATH, then ./config/console.yaml. A missing
	// file is fine: the environment and the defaults fill in.
	cfg, err := config.Load(config.Path())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

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
