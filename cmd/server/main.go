/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workshop engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the global logger
  3. Initialize SQLite store
  4. Create API handler (domain services + order aggregator)
  5. Subscribe the notification gateway
  6. Start the debt reminder scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: workshop.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/workshop.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/workshop-engine/api"
	"github.com/warp/workshop-engine/core"
	"github.com/warp/workshop-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "workshop.db", "SQLite database path")
	flag.Parse()

	// Logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		zap.S().Fatalw("failed to initialize database", "db", *dbPath, "error", err)
	}
	defer store.Close()

	// Domain wiring: services, order aggregator, notification gateway
	bus := core.NewBus()
	handler := api.NewHandler(store, bus)
	core.SubscribeNotifier(bus, core.LogNotifier{})

	// Daily debt reminders
	scheduler := api.NewReminderScheduler(handler.Debts, core.LogNotifier{})
	if err := scheduler.Start(); err != nil {
		zap.S().Fatalw("failed to start reminder scheduler", "error", err)
	}
	defer scheduler.Stop()

	// HTTP server
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zap.S().Infow("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.S().Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zap.S().Fatalw("server forced to shutdown", "error", err)
	}

	zap.S().Infow("server stopped")
}
