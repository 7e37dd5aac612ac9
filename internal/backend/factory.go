package backend

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/cache"
	"saldo/internal/core"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/storage"
	"saldo/internal/store"
	"saldo/internal/store/memory"
	"saldo/internal/store/postgres"
	"saldo/internal/store/prefs"
	s3store "saldo/internal/store/s3"
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
		logger: logger.With("component", "backend"),
	}
}

// CreateBackend opens the configured backend and wraps it with the bounded
// timeout and the optional ledger cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	raw, cleanup, err := f.open(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Raw: raw, Type: config.Type, Cleanup: cleanup}
	wrapped := store.WithTimeout(raw, config.Type.String(), config.StoreTimeout)
	result.Direct = wrapped

	if config.CacheSize > 0 {
		items := cache.NewLRUCache[core.Ledger](config.CacheSize, config.CacheTTL)
		manager := cache.NewManager()
		manager.Register(items)
		if config.CacheTTL > 0 {
			manager.StartCleanup(config.CacheTTL)
		}

		if config.Type.Lossy() {
			// Saved ledgers are rewritten by the backend, so only loads fill the cache.
			wrapped = store.NewReadThrough(wrapped, items)
		} else {
			wrapped = store.NewCached(wrapped, items)
		}
		result.Cache = items
		result.Cleanup = chain(func() error { manager.Stop(); return nil }, cleanup)
	}
	result.Store = wrapped

	if config.Type.Lossy() {
		f.logger.Warn("Backend drops expense order and duplicates", "backend", config.Type)
	}
	f.logger.Info("Initialized backend",
		"backend", config.Type,
		"store_timeout", config.StoreTimeout,
		"cache_size", config.CacheSize)
	return result, nil
}

func (f *DefaultFactory) open(ctx context.Context, config Config) (store.Store, CleanupFunc, error) {
	switch config.Type {
	case MemoryBackend:
		if config.SeedDirectory != "" {
			return memory.NewFromDir(config.SeedDirectory), nil, nil
		}
		return memory.New(), nil, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite database", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil

	case PrefsBackend:
		return prefs.New(config.PrefsPath), nil, nil

	case PostgresBackend:
		pg, err := postgres.Open(ctx, config.PostgresURL, config.PostgresTable)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		return pg, pg.Close, nil

	case S3Backend:
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:   config.S3Bucket,
			Prefix:   config.S3Prefix,
			Region:   config.AWSRegion,
			Endpoint: config.S3Endpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		return s, nil, nil

	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			OAuthClientJSON:    config.GoogleOAuthClientJSON,
			OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func chain(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var first error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
