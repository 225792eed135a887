/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the arrears engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load ARREARS_* configuration, then apply command-line flags
  2. Initialize SQLite store
  3. Wire the event bus: notifier, websocket hub
  4. Create API handler and router
  5. Start the overdue scanner and the server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -db      SQLite database path. Use ":memory:" for an in-memory database

ENVIRONMENT:
  ARREARS_PORT, ARREARS_DB_PATH, ARREARS_LOG_LEVEL, ARREARS_LOG_FORMAT,
  ARREARS_CORS_ORIGINS, ARREARS_SCAN_INTERVAL, ARREARS_AMQP_URL,
  ARREARS_AMQP_EXCHANGE. See config/config.go for defaults.

  Without ARREARS_AMQP_URL, payment notifications are only logged.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close websocket clients, the publisher and the database
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - notify/notifier.go: Notification trigger
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warp/arrears-engine/api"
	"github.com/warp/arrears-engine/config"
	"github.com/warp/arrears-engine/events"
	"github.com/warp/arrears-engine/notify"
	"github.com/warp/arrears-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := cfg.NewLogger(os.Stderr)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", "err", err)
	}
	defer store.Close()

	bus := events.NewBus()

	// Notifications
	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()
	notifier := notify.New(store, publisher, logger)
	defer notifier.Attach(bus)()

	// Websocket feed
	hub := api.NewHub(logger)
	defer hub.Attach(bus)()

	// Initialize handler
	handler := api.NewHandler(store, store, bus, logger)
	handler.Metrics = api.NewMetrics()

	router := api.NewRouter(handler, hub, handler.Metrics, cfg.CORSOrigins)

	scanner := api.NewOverdueScanner(handler, cfg.ScanInterval)
	scanner.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", "addr", cfg.Addr(), "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	scanner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	hub.Close()

	logger.Info("Server stopped")
}

// newPublisher returns the AMQP publisher when configured, the log
// publisher otherwise.
func newPublisher(cfg *config.Config, logger *log.Logger) (notify.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return notify.LogPublisher{Logger: logger.WithPrefix("notify")}, func() {}
	}

	p, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	logger.Info("Publishing notifications to RabbitMQ", "exchange", cfg.AMQPExchange)
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ publisher", "err", err)
		}
	}
}
