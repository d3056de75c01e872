package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Data and image backends understood by the service.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	ImageBackendLocal = "local"
	ImageBackendGCS   = "gcs"
)

// Config is the process-wide configuration, built once at startup and passed
// to the components that need it.
type Config struct {
	// HTTP server
	Port         string
	MaxUploadMB  int
	AllowOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Gemini
	GoogleAPIKey    string
	GeminiModel     string
	DealFinderModel string

	// Receipt and budget store
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// Receipt images
	ImageBackend    string
	MediaRoot       string
	GCSBucket       string
	CredentialsFile string

	// BigQuery export (optional)
	BigQueryProject  string
	BigQueryDataset  string
	ExportAsync      bool
	ExportWorkers    int
	ExportMaxRetries int

	// Notion sync (optional)
	NotionToken        string
	NotionReceiptsDBID string

	// Budget defaults
	BudgetDefaultLimit  decimal.Decimal
	TrackerDefaultLimit decimal.Decimal
}

// Load reads a .env file when present and then builds the configuration from
// the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 10),
		AllowOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		DealFinderModel: getEnv("DEAL_FINDER_MODEL", "gemini-2.5-flash"),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/receipts.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		ImageBackend:    getEnv("IMAGE_BACKEND", ImageBackendLocal),
		MediaRoot:       getEnv("MEDIA_ROOT", "./media"),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BigQueryProject:  getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset:  getEnv("BIGQUERY_DATASET", "receipts"),
		ExportAsync:      getEnvBool("EXPORT_ASYNC", false),
		ExportWorkers:    getEnvInt("EXPORT_WORKERS", 2),
		ExportMaxRetries: getEnvInt("EXPORT_MAX_RETRIES", 3),

		NotionToken:        getEnv("NOTION_TOKEN", ""),
		NotionReceiptsDBID: getEnv("NOTION_RECEIPTS_DB_ID", ""),

		BudgetDefaultLimit:  getEnvDecimal("BUDGET_DEFAULT_LIMIT", decimal.Zero),
		TrackerDefaultLimit: getEnvDecimal("TRACKER_DEFAULT_LIMIT", decimal.NewFromInt(10000)),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadMB < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %dMB: must be at least 1", c.MaxUploadMB))
	}

	if c.GoogleAPIKey == "" {
		errors = append(errors, "GOOGLE_API_KEY is required for receipt extraction and the advisor")
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v",
			c.DataBackend, []string{BackendSQLite, BackendPostgres, BackendMemory}))
	}

	switch c.ImageBackend {
	case ImageBackendLocal:
		if c.MediaRoot == "" {
			errors = append(errors, "MEDIA_ROOT cannot be empty when using local image backend")
		}
	case ImageBackendGCS:
		if c.GCSBucket == "" {
			errors = append(errors, "GCS_BUCKET is required when using gcs image backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid image backend '%s': must be one of %v",
			c.ImageBackend, []string{ImageBackendLocal, ImageBackendGCS}))
	}

	if c.BigQueryEnabled() && c.ExportAsync && c.ExportWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid export worker count %d: must be at least 1", c.ExportWorkers))
	}

	if c.BudgetDefaultLimit.IsNegative() {
		errors = append(errors, "BUDGET_DEFAULT_LIMIT cannot be negative")
	}
	if c.TrackerDefaultLimit.IsNegative() {
		errors = append(errors, "TRACKER_DEFAULT_LIMIT cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// BigQueryEnabled reports whether processed receipts are exported to BigQuery.
func (c *Config) BigQueryEnabled() bool {
	return c.BigQueryProject != ""
}

// NotionEnabled reports whether the Notion sync has credentials and a target database.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionReceiptsDBID != ""
}

// MaxUploadBytes is the multipart body limit for receipt uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
