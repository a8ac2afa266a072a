package backend

import (
	"context"
	"fmt"
	"log/slog"

	"spendlog/internal/ledger/csvfile"
	"spendlog/internal/ledger/memory"
	"spendlog/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	store, err := csvfile.New(config.ExpensesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize expenses file: %w", err)
	}

	f.logger.Info("Initialized CSV backend", "path", store.Path())

	return &BackendResult{
		Repository: store,
		Cleanup:    nil, // every write is flushed to disk
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var store *memory.Store
	if config.ExpensesFile != "" {
		store = memory.NewFromFile(config.ExpensesFile)
	} else {
		store = memory.New()
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.ExpensesFile)

	return &BackendResult{
		Repository: store,
		Cleanup:    nil,
	}, nil
}
