package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/backend"
	"github.com/dvloznov/receipt-reader/internal/config"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	bq "github.com/dvloznov/receipt-reader/internal/infra/bigquery"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/dvloznov/receipt-reader/internal/notionsync"
	"github.com/dvloznov/receipt-reader/internal/store"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		JSON:   strings.EqualFold(cfg.LogFormat, "json"),
		Output: os.Stderr,
	})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(cfg, log)
	case "receipts":
		runReceipts(cfg, log)
	case "report":
		runReport(cfg, log)
	case "track":
		runTrack(cfg, log)
	case "budget":
		runBudget(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "export-bigquery":
		runExportBigQuery(cfg, log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Receipt Reader CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process          Extract and store a receipt image")
	fmt.Println("  receipts         List stored receipts")
	fmt.Println("  report           Most and least expensive items in a date range")
	fmt.Println("  track            Monthly spending against the budget")
	fmt.Println("  budget           Show (get) or change (set) a monthly budget")
	fmt.Println("  chat             Ask the spending advisor a question")
	fmt.Println("  export-bigquery  Export processed receipts missing from BigQuery")
	fmt.Println("  sync-notion      Mirror processed receipts into a Notion database")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openApp builds the full service, including the Gemini agents.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *backend.App {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	app, err := backend.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	return app
}

// openStore opens only the receipt store, for commands that never call a model.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) store.Store {
	st, err := backend.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return st
}

// storeService builds a service that can serve reads and budget writes.
func storeService(st store.Store, cfg *config.Config) *expenses.Service {
	opts := expenses.DefaultOptions()
	opts.BudgetDefaultLimit = cfg.BudgetDefaultLimit
	opts.TrackerDefaultLimit = cfg.TrackerDefaultLimit
	return expenses.NewService(expenses.Deps{Receipts: st, Budgets: st}, opts)
}

func printJSON(log zerolog.Logger, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
	fmt.Println(string(out))
}

// resolvePeriod fills zero flags from the current period.
func resolvePeriod(svc *expenses.Service, year, month int) (int, time.Month) {
	y, m := svc.CurrentPeriod()
	if year != 0 {
		y = year
	}
	if month != 0 {
		m = time.Month(month)
	}
	return y, m
}

func runProcess(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the receipt image")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read image")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	app := openApp(ctx, cfg, log)
	defer app.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(*filePath)))
	receipt, err := app.Service.ProcessReceipt(ctx, filepath.Base(*filePath), contentType, data)
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}

	printJSON(log, receipt)
}

func runReceipts(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("receipts", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	st := openStore(ctx, cfg, log)
	defer st.Close()

	receipts, err := storeService(st, cfg).ListReceipts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list receipts")
	}

	fmt.Printf("\n=== Receipts (%d) ===\n", len(receipts))
	for i, r := range receipts {
		merchant := r.Data.MerchantName()
		if merchant == "" {
			merchant = "N/A"
		}
		total := "N/A"
		if r.HasData() {
			if t, ok := r.Data.TotalAmount(); ok {
				total = t.StringFixed(2)
			}
		}
		fmt.Printf("\n%d. #%d %s\n", i+1, r.ID, merchant)
		fmt.Printf("   Uploaded: %s\n", r.UploadedAt.Format(time.RFC3339))
		fmt.Printf("   Category: %s\n", r.CategoryOrDefault())
		fmt.Printf("   Total:    %s\n", total)
	}
	fmt.Println()
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	start := fs.String("start", "", "Start date in YYYY-MM-DD format")
	end := fs.String("end", "", "End date in YYYY-MM-DD format")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	st := openStore(ctx, cfg, log)
	defer st.Close()

	report, err := storeService(st, cfg).Report(ctx, *start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
	printJSON(log, report)
}

func runTrack(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	year := fs.Int("year", 0, "Year (defaults to the current year)")
	month := fs.Int("month", 0, "Month 1-12 (defaults to the current month)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// The tracker may ask the deal finder for a suggestion.
	app := openApp(ctx, cfg, log)
	defer app.Close()

	y, m := resolvePeriod(app.Service, *year, *month)
	summary, err := app.Service.Track(ctx, y, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Tracker failed")
	}
	printJSON(log, summary)
}

func runBudget(cfg *config.Config, log zerolog.Logger) {
	if len(os.Args) < 3 || (os.Args[2] != "get" && os.Args[2] != "set") {
		fmt.Fprintln(os.Stderr, "Usage: cli budget get|set [-year Y] [-month M] [-limit AMOUNT]")
		os.Exit(1)
	}
	action := os.Args[2]

	fs := flag.NewFlagSet("budget "+action, flag.ExitOnError)
	year := fs.Int("year", 0, "Year (defaults to the current year)")
	month := fs.Int("month", 0, "Month 1-12 (defaults to the current month)")
	limit := fs.String("limit", "", "Monthly limit, e.g. 1200.50 (set only)")
	fs.Parse(os.Args[3:])

	ctx := logger.WithContext(context.Background(), log)
	st := openStore(ctx, cfg, log)
	defer st.Close()

	svc := storeService(st, cfg)
	y, m := resolvePeriod(svc, *year, *month)

	if action == "get" {
		budget, err := svc.GetBudget(ctx, y, m)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get budget")
		}
		printJSON(log, budget)
		return
	}

	budget, created, err := svc.SetBudget(ctx, y, m, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set budget")
	}
	if created {
		log.Info().Int("year", y).Int("month", int(m)).Msg("Budget created")
	} else {
		log.Info().Int("year", y).Int("month", int(m)).Msg("Budget updated")
	}
	printJSON(log, budget)
}

func runChat(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	query := fs.String("q", "", "Question for the advisor")
	fs.Parse(os.Args[2:])

	if strings.TrimSpace(*query) == "" {
		log.Fatal().Msg("Error: -q is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	app := openApp(ctx, cfg, log)
	defer app.Close()

	answer, err := app.Service.Chat(ctx, *query, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}
	fmt.Println(answer)
}

func runExportBigQuery(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export-bigquery", flag.ExitOnError)
	project := fs.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT)")
	dataset := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	concurrency := fs.Int("concurrency", bq.DefaultBackfillConcurrency, "Parallel inserts")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: -project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st := openStore(ctx, cfg, log)
	defer st.Close()

	exporter, err := bq.NewExporter(ctx, *project, *dataset, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery exporter")
	}
	defer exporter.Close()

	receipts, err := st.ListReceipts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list receipts")
	}

	result, err := bq.Backfill(ctx, exporter, receipts, *concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d receipt(s); %d already present, %d unprocessed, %d failed.\n",
		result.Exported, result.AlreadyPresent, result.Unprocessed, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	notionToken := fs.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := fs.String("notion-db-id", cfg.NotionReceiptsDBID, "Notion database ID (or set NOTION_RECEIPTS_DB_ID)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	prune := fs.Bool("prune", false, "Archive pages whose receipt no longer exists")
	fs.Parse(os.Args[2:])

	if *notionToken == "" {
		log.Fatal().Msg("Error: -notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: -notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st := openStore(ctx, cfg, log)
	defer st.Close()

	receipts, err := st.ListReceipts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list receipts")
	}

	result, err := notionsync.SyncReceipts(ctx, notionsync.NewClient(*notionToken), *notionDBID, receipts, notionsync.Options{
		DryRun: *dryRun,
		Prune:  *prune,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d skipped, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Skipped, result.Failed)
}
