package backend

import (
	"context"
	"fmt"

	"finanze/internal/log"
	gsheet "finanze/internal/sheets/google"
	"finanze/internal/sheets/memory"
	"finanze/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.withSnapshots(config, func() (*BackendResult, error) {
			return f.createSheetsBackend(ctx, config)
		})
	case MemoryBackend:
		return f.withSnapshots(config, func() (*BackendResult, error) {
			return f.createMemoryBackend(config)
		})
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createSQLiteBackend reads straight from the snapshot database. No fallback
// is attached since the source is the fallback.
func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Source:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend")

	return &BackendResult{Source: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store, err := memory.NewFromDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Source: store}, nil
}

// withSnapshots attaches the SQLite snapshot store to a primary source when
// snapshots are enabled.
func (f *DefaultFactory) withSnapshots(config Config, create func() (*BackendResult, error)) (*BackendResult, error) {
	result, err := create()
	if err != nil {
		return nil, err
	}
	if !config.SnapshotEnabled {
		return result, nil
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	f.logger.Info("Snapshot cache enabled", "db_path", config.SQLiteDBPath)

	primary := result.Cleanup
	result.Snapshots = repo
	result.Cleanup = func() error {
		if primary != nil {
			if err := primary(); err != nil {
				repo.Close()
				return err
			}
		}
		return repo.Close()
	}
	return result, nil
}
