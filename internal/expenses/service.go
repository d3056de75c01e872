// Package expenses implements receipt processing and the spending reports
// built on top of extracted receipt data.
package expenses

import (
	"context"
	"time"

	"github.com/dvloznov/receipt-reader/internal/ai"
	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/storage"
	"github.com/dvloznov/receipt-reader/internal/store"
	"github.com/shopspring/decimal"
)

// Scanner extracts structured data from a receipt image.
type Scanner interface {
	Extract(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error)
}

// Advisor answers free-form questions about the user's receipts.
type Advisor interface {
	Respond(ctx context.Context, question string, history []ai.ChatMessage, receiptsJSON string) string
}

// DealFinder produces a savings suggestion for an item.
type DealFinder interface {
	Suggest(ctx context.Context, itemName string) (string, error)
}

// Exporter mirrors processed receipts to an analytics store.
type Exporter interface {
	ExportReceipt(ctx context.Context, r *domain.Receipt) error
}

// Deps are the collaborators of Service. Exporter is optional.
type Deps struct {
	Receipts   store.ReceiptRepository
	Budgets    store.BudgetRepository
	Images     storage.ImageStore
	Scanner    Scanner
	Advisor    Advisor
	DealFinder DealFinder
	Exporter   Exporter
}

// Options tune Service behavior.
type Options struct {
	// BudgetDefaultLimit is used when the budget endpoint reads an unknown period.
	BudgetDefaultLimit decimal.Decimal
	// TrackerDefaultLimit is used when the tracker reads an unknown period.
	TrackerDefaultLimit decimal.Decimal
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the stock default limits: 0.00 for budget reads and
// 10000.00 for the tracker.
func DefaultOptions() Options {
	return Options{
		BudgetDefaultLimit:  decimal.Zero,
		TrackerDefaultLimit: decimal.NewFromInt(10000),
		Now:                 time.Now,
	}
}

// Service is the aggregation engine plus receipt processing.
type Service struct {
	deps Deps
	opts Options
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{deps: deps, opts: opts}
}

// CurrentPeriod returns the year and month used when a request omits them.
func (s *Service) CurrentPeriod() (int, time.Month) {
	now := s.opts.Now()
	return now.Year(), now.Month()
}

func validatePeriod(year int, month time.Month) error {
	if year < 1 || year > 9999 || month < time.January || month > time.December {
		return ErrInvalidPeriod
	}
	return nil
}
