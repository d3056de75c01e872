package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/receipt-reader/internal/ai"
	"github.com/dvloznov/receipt-reader/internal/config"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	bq "github.com/dvloznov/receipt-reader/internal/infra/bigquery"
	"github.com/dvloznov/receipt-reader/internal/jobs"
	"github.com/dvloznov/receipt-reader/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-reader/internal/store"
	"github.com/rs/zerolog"
)

// App holds the service and every resource it was built from.
type App struct {
	Service  *expenses.Service
	Store    store.Store
	Images   *Images
	Exporter *bq.Exporter // nil when BigQuery export is disabled

	// ExportJobs records background export attempts; nil unless export is async.
	ExportJobs *inmemory.Store

	closers []func() error
}

// NewApp wires stores, the Gemini agents and the optional BigQuery exporter
// into an expenses.Service.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{}

	st, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = st
	app.closers = append(app.closers, st.Close)

	images, err := OpenImageStore(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Images = images
	app.closers = append(app.closers, images.Close)

	genaiClient, err := ai.NewClient(ctx, cfg.GoogleAPIKey)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	if cfg.BigQueryEnabled() {
		exporter, err := bq.NewExporter(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.CredentialsFile)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize BigQuery exporter: %w", err)
		}
		app.Exporter = exporter
		app.closers = append(app.closers, exporter.Close)
		log.Info().
			Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).
			Bool("async", cfg.ExportAsync).
			Msg("BigQuery export enabled")
	}

	deps := expenses.Deps{
		Receipts:   st,
		Budgets:    st,
		Images:     images,
		Scanner:    ai.NewReceiptScanner(genaiClient.Models, cfg.GeminiModel),
		Advisor:    ai.NewAdvisor(genaiClient.Models, cfg.GeminiModel),
		DealFinder: ai.NewDealFinder(genaiClient.Models, cfg.DealFinderModel),
	}
	switch {
	case app.Exporter != nil && cfg.ExportAsync:
		exporter, err := app.startExportQueue(app.Exporter, cfg, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Exporter = exporter
	case app.Exporter != nil:
		deps.Exporter = app.Exporter
	}

	opts := expenses.DefaultOptions()
	opts.BudgetDefaultLimit = cfg.BudgetDefaultLimit
	opts.TrackerDefaultLimit = cfg.TrackerDefaultLimit
	app.Service = expenses.NewService(deps, opts)

	return app, nil
}

// startExportQueue moves BigQuery inserts off the upload path. The queue is
// closed before the exporter so buffered jobs still reach BigQuery.
func (a *App) startExportQueue(exp jobs.ReceiptExporter, cfg *config.Config, log zerolog.Logger) (*jobs.AsyncExporter, error) {
	a.ExportJobs = inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Options{
		Workers: cfg.ExportWorkers,
		Store:   a.ExportJobs,
		Log:     log.With().Str("component", "export-queue").Logger(),
	})
	if err := queue.Start(context.Background(), jobs.ExportHandler(exp)); err != nil {
		return nil, fmt.Errorf("failed to start export queue: %w", err)
	}
	a.closers = append(a.closers, queue.Close)
	return jobs.NewAsyncExporter(queue, cfg.ExportMaxRetries), nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
