// Package cli provides common CLI initialization utilities and the
// spendlog-cli command tree. The bootstrap helpers are shared with
// cmd/spendlog.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"spendlog/internal/backend"
	"spendlog/internal/config"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger.
func SetupLogger(w io.Writer, level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = w
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the environment, overlays the config file (path, or
// CONFIG_FILE when path is empty), applies overrides such as command-line
// flags and validates the result.
func LoadConfig(path string, overrides ...func(*config.Config)) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, apply := range overrides {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger, path string) *config.Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// OpenService builds the configured storage backend and wraps it in an
// ExpenseService whose Close releases the backend.
func OpenService(ctx context.Context, logger *log.Logger, cfg *config.Config) (*services.ExpenseService, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	svc := services.NewExpenseService(res.Repository, logger)
	if res.Cleanup != nil {
		svc = svc.WithCleanup(res.Cleanup)
	}
	return svc, nil
}
