package expenses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/shopspring/decimal"
)

// maxLimit is the first amount that no longer fits NUMERIC(12,2).
var maxLimit = decimal.New(1, 10)

// GetBudget returns the budget for the period, creating it with the budget
// default limit when absent.
func (s *Service) GetBudget(ctx context.Context, year int, month time.Month) (*domain.MonthlyBudget, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, fmt.Errorf("GetBudget: %d-%02d: %w", year, int(month), err)
	}

	budget, _, err := s.deps.Budgets.GetOrCreateBudget(ctx, year, month, s.opts.BudgetDefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("GetBudget: %w", err)
	}
	return budget, nil
}

// SetBudget creates or replaces the limit for the period. created reports
// whether the period had no budget before.
func (s *Service) SetBudget(ctx context.Context, year int, month time.Month, limit string) (*domain.MonthlyBudget, bool, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, false, fmt.Errorf("SetBudget: %d-%02d: %w", year, int(month), err)
	}

	amount, err := ParseLimit(limit)
	if err != nil {
		return nil, false, fmt.Errorf("SetBudget: %w", err)
	}

	budget, created, err := s.deps.Budgets.UpsertBudget(ctx, year, month, amount)
	if err != nil {
		return nil, false, fmt.Errorf("SetBudget: %w", err)
	}
	return budget, created, nil
}

// ParseLimit validates a budget limit. Empty and zero limits are reported as
// missing; negative, unparseable or oversized ones as invalid.
func ParseLimit(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrLimitRequired
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", raw, ErrInvalidLimit)
	}
	if amount.IsZero() {
		return decimal.Zero, ErrLimitRequired
	}

	amount = amount.Round(2)
	if !amount.IsPositive() || amount.GreaterThanOrEqual(maxLimit) {
		return decimal.Zero, fmt.Errorf("%q: %w", raw, ErrInvalidLimit)
	}
	return amount, nil
}
