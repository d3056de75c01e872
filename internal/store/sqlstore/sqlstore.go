// Package sqlstore implements store.Store on SQLite (modernc.org/sqlite) and
// PostgreSQL (lib/pq). The schema is managed by embedded golang-migrate
// migrations that run on Open.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/store"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Supported SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Store is a database/sql backed store.Store.
type Store struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp uploads.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database, applies pending migrations and returns a ready store.
// For sqlite the dsn is a file path; its parent directory is created if needed.
func Open(ctx context.Context, dialect, dsn string, opts ...Option) (*Store, error) {
	driverName, err := driverFor(dialect)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	if dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("Open: create db directory: %w", err)
		}
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: open %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}

	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			db.Close()
			return nil, fmt.Errorf("Open: set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func driverFor(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders to ? for sqlite. Queries must use their
// placeholders in ascending order.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

const receiptColumns = `id, uploaded_at, image, json_data, category`

// CreateReceipt implements store.ReceiptRepository.
func (s *Store) CreateReceipt(ctx context.Context, image string) (*domain.Receipt, error) {
	if image == "" {
		return nil, fmt.Errorf("CreateReceipt: image reference is required")
	}

	r := &domain.Receipt{
		UploadedAt: s.now().UTC().Truncate(time.Microsecond),
		Image:      image,
		Category:   domain.DefaultCategory,
	}

	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO receipts (uploaded_at, image, category) VALUES ($1, $2, $3) RETURNING id`),
		r.UploadedAt.UnixMicro(), r.Image, r.Category,
	).Scan(&r.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateReceipt: insert: %w", err)
	}

	return r, nil
}

// UpdateExtraction implements store.ReceiptRepository.
func (s *Store) UpdateExtraction(ctx context.Context, id int64, data domain.ReceiptData, category string) error {
	var payload sql.NullString
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("UpdateExtraction: encode receipt data: %w", err)
		}
		payload = sql.NullString{String: string(raw), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE receipts SET json_data = $1, category = $2 WHERE id = $3`),
		payload, category, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateExtraction: update receipt %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateExtraction: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateExtraction: receipt %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetReceipt implements store.ReceiptRepository.
func (s *Store) GetReceipt(ctx context.Context, id int64) (*domain.Receipt, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+receiptColumns+` FROM receipts WHERE id = $1`), id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetReceipt: receipt %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetReceipt: %w", err)
	}
	return r, nil
}

// ListReceipts implements store.ReceiptRepository.
func (s *Store) ListReceipts(ctx context.Context) ([]*domain.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListReceipts: query: %w", err)
	}
	receipts, err := collectReceipts(rows)
	if err != nil {
		return nil, fmt.Errorf("ListReceipts: %w", err)
	}
	return receipts, nil
}

// ListReceiptsUploadedIn implements store.ReceiptRepository.
func (s *Store) ListReceiptsUploadedIn(ctx context.Context, year int, month time.Month) ([]*domain.Receipt, error) {
	start, end := store.MonthBounds(year, month)
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE uploaded_at >= $1 AND uploaded_at < $2
		 ORDER BY uploaded_at DESC, id DESC`),
		start.UnixMicro(), end.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("ListReceiptsUploadedIn: query: %w", err)
	}
	receipts, err := collectReceipts(rows)
	if err != nil {
		return nil, fmt.Errorf("ListReceiptsUploadedIn: %w", err)
	}
	return receipts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*domain.Receipt, error) {
	var (
		r          domain.Receipt
		uploadedAt int64
		payload    sql.NullString
	)
	if err := row.Scan(&r.ID, &uploadedAt, &r.Image, &payload, &r.Category); err != nil {
		return nil, err
	}
	r.UploadedAt = time.UnixMicro(uploadedAt).UTC()

	if payload.Valid {
		data, err := domain.ParseReceiptData([]byte(payload.String))
		if err != nil {
			return nil, fmt.Errorf("receipt %d: %w", r.ID, err)
		}
		r.Data = data
	}
	return &r, nil
}

func collectReceipts(rows *sql.Rows) ([]*domain.Receipt, error) {
	defer rows.Close()

	receipts := []*domain.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

// GetOrCreateBudget implements store.BudgetRepository. The insert is a no-op
// when the period already exists, so concurrent callers create one record.
func (s *Store) GetOrCreateBudget(ctx context.Context, year int, month time.Month, defaultLimit decimal.Decimal) (*domain.MonthlyBudget, bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO monthly_budgets (year, month, limit_amount) VALUES ($1, $2, $3)
		 ON CONFLICT (year, month) DO NOTHING`),
		year, int(month), domain.FormatAmount(defaultLimit),
	)
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreateBudget: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreateBudget: rows affected: %w", err)
	}

	budget, err := s.getBudget(ctx, s.db, year, month)
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreateBudget: %w", err)
	}
	return budget, n == 1, nil
}

// UpsertBudget implements store.BudgetRepository. Concurrent writers for the
// same period are last-writer-wins.
func (s *Store) UpsertBudget(ctx context.Context, year int, month time.Month, limit decimal.Decimal) (*domain.MonthlyBudget, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("UpsertBudget: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = s.getBudget(ctx, tx, year, month)
	created := errors.Is(err, store.ErrNotFound)
	if err != nil && !created {
		return nil, false, fmt.Errorf("UpsertBudget: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO monthly_budgets (year, month, limit_amount) VALUES ($1, $2, $3)
		 ON CONFLICT (year, month) DO UPDATE SET limit_amount = excluded.limit_amount`),
		year, int(month), domain.FormatAmount(limit),
	)
	if err != nil {
		return nil, false, fmt.Errorf("UpsertBudget: write: %w", err)
	}

	budget, err := s.getBudget(ctx, tx, year, month)
	if err != nil {
		return nil, false, fmt.Errorf("UpsertBudget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("UpsertBudget: commit: %w", err)
	}
	return budget, created, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getBudget(ctx context.Context, q queryer, year int, month time.Month) (*domain.MonthlyBudget, error) {
	var limit string
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT limit_amount FROM monthly_budgets WHERE year = $1 AND month = $2`),
		year, int(month),
	).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %d-%02d: %w", year, int(month), store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select budget %d-%02d: %w", year, int(month), err)
	}

	amount, err := domain.ParseAmount(limit)
	if err != nil {
		return nil, fmt.Errorf("budget %d-%02d: %w", year, int(month), err)
	}
	return &domain.MonthlyBudget{Year: year, Month: month, Limit: amount}, nil
}
