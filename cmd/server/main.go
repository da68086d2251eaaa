/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, .env, environment), then apply flags
  2. Initialize logging
  3. Open the configured store (sqlite or postgres)
  4. Create engine and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  JSON config file (optional)
  -env     .env file (default: .env, ignored when missing)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/commissions.db"
  DB_DRIVER=postgres DB_HOST=db ./server
  JWT_SECRET=... ./server -port=3000

SEE ALSO:
  - config/config.go: All settings and environment variables
  - api/server.go: Router configuration
  - store/open.go: Store selection
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brokerdesk/commission-engine/api"
	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/config"
	"github.com/brokerdesk/commission-engine/logging"
	"github.com/brokerdesk/commission-engine/store"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "JSON config file")
	envFile := flag.String("env", ".env", "dotenv file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = *dbPath
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Sync()
	logger := logging.Logger

	// Initialize store
	repo, err := store.Open(cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	opts, err := cfg.EngineOptions()
	if err != nil {
		logger.Fatal("invalid engine configuration", zap.Error(err))
	}
	engine := commission.NewEngine(opts...)

	handler := api.NewHandler(repo, engine, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:      api.Auth{Secret: []byte(cfg.Auth.JWTSecret), TenantClaim: cfg.Auth.TenantClaim},
		Scenarios: cfg.Server.Scenarios,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("driver", cfg.Database.Driver),
			zap.Bool("jwt", cfg.Auth.JWTSecret != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}
