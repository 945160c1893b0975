/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the PocketVault ledger engine server.
  Handles configuration, dependency injection, the background payout
  scheduler, and graceful shutdown.

STARTUP SEQUENCE:
  1. Resolve configuration (flags + environment)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Construct the vault managers and API handler
  5. Start the payout scheduler
  6. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the payout scheduler
  4. Close database connection
  5. Exit

SEE ALSO:
  - config/config.go: Settings and precedence
  - api/server.go: Router configuration
  - api/scheduler.go: Background due-payout sweep
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pocketvault/ledger-engine/api"
	"github.com/pocketvault/ledger-engine/config"
	"github.com/pocketvault/ledger-engine/store/sqlite"
	"github.com/pocketvault/ledger-engine/vault"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := cfg.NewLogger()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Engine wiring
	engineCfg := vault.DefaultConfig()
	engineCfg.MinLockAmount = cfg.MinLock()
	engineCfg.MaxLockDays = cfg.MaxLockDays
	notifier := vault.NewLogNotifier(log)

	payouts := vault.NewPayoutEngine(store, notifier, log)
	handler := api.NewHandler(
		vault.NewUsers(store),
		vault.NewLockManager(store, engineCfg, notifier),
		vault.NewScheduleManager(store, notifier),
		payouts,
		vault.NewBankRegistry(store),
		vault.NewFunding(store, engineCfg, notifier),
		vault.NewImpulseTracker(store, engineCfg),
		log,
	)

	scheduler := api.NewPayoutScheduler(payouts, log, cfg.ScanInterval)
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Addr()),
			zap.String("db", cfg.DatabasePath),
			zap.Duration("scan_interval", cfg.ScanInterval))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()

	log.Info("server stopped")
}
