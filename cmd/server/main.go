/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the billing engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load runtime config (viper: file + env)
  2. Build zap logger
  3. Open SQLite store
  4. Load the tariff settings document (or built-in defaults)
  5. Wire handler + router, start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (configurable timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (billing.db, port 8080)
  ./server

  # Point at a config directory
  ./server -config ./deploy

SEE ALSO:
  - config/config.go: Runtime configuration
  - api/server.go: Router configuration
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

	"go.uber.org/zap"

	"github.com/clearflow/billing-engine/api"
	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/config"
	"github.com/clearflow/billing-engine/factory"
	"github.com/clearflow/billing-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()

	rates, billingCfg, rewardCfg := loadSettings(cfg.SettingsPath, logger)

	handler := api.NewHandler(store, rates, billingCfg, rewardCfg, billing.SystemClock{}, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// loadSettings parses the tariff settings document, falling back to
// built-in defaults when the path is unset or unreadable.
func loadSettings(path string, logger *zap.Logger) (billing.RateConfig, billing.BillingConfig, billing.RewardConfig) {
	if path == "" {
		return billing.DefaultRateConfig(), billing.DefaultBillingConfig(), billing.DefaultRewardConfig()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("settings document unavailable, using defaults",
			zap.String("path", path), zap.Error(err))
		return billing.DefaultRateConfig(), billing.DefaultBillingConfig(), billing.DefaultRewardConfig()
	}
	rates, billingCfg, rewardCfg, err := factory.NewConfigFactory().Parse(data)
	if err != nil {
		logger.Warn("settings document invalid, using defaults",
			zap.String("path", path), zap.Error(err))
		return billing.DefaultRateConfig(), billing.DefaultBillingConfig(), billing.DefaultRewardConfig()
	}
	return rates, billingCfg, rewardCfg
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if err := zc.Level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return zc.Build()
}
