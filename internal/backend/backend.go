// Package backend builds the configured storage implementations.
package backend

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-reader/internal/config"
	"github.com/dvloznov/receipt-reader/internal/storage"
	"github.com/dvloznov/receipt-reader/internal/store"
	"github.com/dvloznov/receipt-reader/internal/store/memory"
	"github.com/dvloznov/receipt-reader/internal/store/sqlstore"
	"github.com/rs/zerolog"
)

// Images is an image store plus the function that releases it.
type Images struct {
	storage.ImageStore
	Cleanup func() error
}

// Close runs Cleanup when set.
func (i *Images) Close() error {
	if i.Cleanup == nil {
		return nil
	}
	return i.Cleanup()
}

// OpenStore opens the receipt and budget store selected by cfg.DataBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		s, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		log.Info().Str("db_path", cfg.SQLiteDBPath).Msg("Initialized SQLite backend")
		return s, nil

	case config.BackendPostgres:
		s, err := sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		log.Info().Msg("Initialized Postgres backend")
		return s, nil

	case config.BackendMemory:
		log.Warn().Msg("Initialized memory backend - data is lost on restart")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}

// OpenImageStore opens the image store selected by cfg.ImageBackend.
func OpenImageStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Images, error) {
	switch cfg.ImageBackend {
	case config.ImageBackendLocal:
		s, err := storage.NewLocalStore(cfg.MediaRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local image store: %w", err)
		}
		log.Info().Str("media_root", cfg.MediaRoot).Msg("Initialized local image store")
		return &Images{ImageStore: s}, nil

	case config.ImageBackendGCS:
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS image store: %w", err)
		}
		log.Info().Str("bucket", cfg.GCSBucket).Msg("Initialized GCS image store")
		return &Images{ImageStore: s, Cleanup: s.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported image backend: %s", cfg.ImageBackend)
	}
}
