package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/config"
	bq "github.com/dvloznov/receipt-reader/internal/infra/bigquery"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/dvloznov/receipt-reader/internal/store/sqlstore"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{
		Level: cfg.LogLevel,
		JSON:  strings.EqualFold(cfg.LogFormat, "json"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], cfg, log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

// run applies the relational store migrations and, when a project is set,
// the BigQuery export dataset migrations.
func run(ctx context.Context, args []string, cfg *config.Config, log zerolog.Logger, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	storeBackend := fs.String("backend", cfg.DataBackend, "Store backend to migrate: sqlite or postgres")
	sqlitePath := fs.String("sqlite", cfg.SQLiteDBPath, "SQLite database path")
	databaseURL := fs.String("database-url", cfg.DatabaseURL, "Postgres connection URL")
	skipStore := fs.Bool("skip-store", false, "Do not migrate the relational store")
	projectID := fs.String("project", cfg.BigQueryProject, "GCP project ID for BigQuery migrations (empty skips them)")
	datasetID := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	appliedBy := fs.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*skipStore {
		if err := migrateStore(*storeBackend, *sqlitePath, *databaseURL, log); err != nil {
			return err
		}
	}

	if *projectID == "" {
		log.Info().Msg("No BigQuery project configured - skipping dataset migrations")
		return nil
	}

	exporter, err := bq.NewExporter(ctx, *projectID, *datasetID, cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	defer exporter.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := bq.NewMigrator(exporter.Client(), *projectID, *datasetID, *appliedBy, log).Migrate(ctx)
	if err != nil {
		return err
	}
	if applied == 0 {
		log.Info().Msg("No new BigQuery migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied BigQuery migrations")
	}
	return nil
}

func migrateStore(backend, sqlitePath, databaseURL string, log zerolog.Logger) error {
	var dialect, dsn string
	switch backend {
	case config.BackendSQLite:
		dialect, dsn = sqlstore.DialectSQLite, sqlitePath
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	case config.BackendPostgres:
		dialect, dsn = sqlstore.DialectPostgres, databaseURL
	case config.BackendMemory:
		log.Info().Msg("Memory backend has no schema - skipping store migrations")
		return nil
	default:
		return fmt.Errorf("unsupported backend %q", backend)
	}

	if dsn == "" {
		return fmt.Errorf("no connection string for %s backend", backend)
	}

	if err := sqlstore.RunMigrations(dialect, dsn); err != nil {
		return err
	}

	version, dirty, err := sqlstore.MigrationVersion(dialect, dsn)
	if err != nil {
		return err
	}
	log.Info().Str("dialect", dialect).Uint("version", version).Bool("dirty", dirty).Msg("Store schema is up to date")
	return nil
}
