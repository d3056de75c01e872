// Package store defines persistence for receipts and monthly budgets.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ReceiptRepository persists uploaded receipts.
type ReceiptRepository interface {
	// CreateReceipt records a new upload. ID and UploadedAt are assigned by the store.
	CreateReceipt(ctx context.Context, image string) (*domain.Receipt, error)
	// UpdateExtraction sets the extracted payload and its denormalized category.
	UpdateExtraction(ctx context.Context, id int64, data domain.ReceiptData, category string) error
	GetReceipt(ctx context.Context, id int64) (*domain.Receipt, error)
	// ListReceipts returns every receipt, most recent upload first.
	ListReceipts(ctx context.Context) ([]*domain.Receipt, error)
	// ListReceiptsUploadedIn returns receipts uploaded in the given month (UTC),
	// most recent upload first.
	ListReceiptsUploadedIn(ctx context.Context, year int, month time.Month) ([]*domain.Receipt, error)
}

// BudgetRepository persists one MonthlyBudget per (year, month).
type BudgetRepository interface {
	// GetOrCreateBudget returns the budget for the period, creating it with
	// defaultLimit when absent. created reports whether a record was inserted.
	GetOrCreateBudget(ctx context.Context, year int, month time.Month, defaultLimit decimal.Decimal) (budget *domain.MonthlyBudget, created bool, err error)
	// UpsertBudget creates or replaces the limit for the period.
	UpsertBudget(ctx context.Context, year int, month time.Month, limit decimal.Decimal) (budget *domain.MonthlyBudget, created bool, err error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ReceiptRepository
	BudgetRepository
	Close() error
}

// MonthBounds returns the half-open UTC interval [start, end) covering a calendar month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
