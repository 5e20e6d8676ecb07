/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hours engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML file + HOURS_* environment)
  3. Build the zap logger
  4. Initialize SQLite store (migrations run on open)
  5. Optionally load the demo organization
  6. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database
  -seed    Load the demo organization into an empty database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

ALERTS:
  The server runs no background jobs. Schedule `hoursctl alerts run` (or
  POST /api/admin/alerts/run) at the configured trigger time.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/hours-engine/api"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/logging"
	"github.com/warp/hours-engine/seed"
	"github.com/warp/hours-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	loadDemo := flag.Bool("seed", false, "Load the demo organization on start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.Error(err))
	}

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.String("path", cfg.DB.Path), zap.Error(err))
	}
	defer store.Close()

	handler := api.NewHandler(store,
		api.WithLocation(loc),
		api.WithAlertWindow(cfg.Alerts.Window),
		api.WithLogger(log),
	)

	if *loadDemo {
		demo, err := seed.Load(context.Background(), handler.Catalog, handler.Machine, ledger.SystemClock{}.Now())
		if err != nil {
			log.Fatal("Failed to load demo data", zap.Error(err))
		}
		log.Info("Demo organization loaded",
			zap.Int("actors", len(demo.Actors)),
			zap.Int("sessions", len(demo.Sessions)),
		)
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORS.Origins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DB.Path),
			zap.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
