package expenses

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/shopspring/decimal"
)

// SuggestionErrorPrefix starts the suggestion text when the deal finder fails.
const SuggestionErrorPrefix = "Could not fetch suggestions at this time. Error: "

// TrackerSummary is the monthly spending overview.
type TrackerSummary struct {
	Budget          *domain.MonthlyBudget
	TotalSpent      decimal.Decimal
	Transactions    []*domain.Receipt
	Suggestion      *string
	CategorySummary map[string]decimal.Decimal

	// TopItem is the highest-priced line item of the month, nil when none.
	TopItem *domain.LineItem
}

// MarshalJSON renders amounts as JSON numbers.
func (t *TrackerSummary) MarshalJSON() ([]byte, error) {
	categories := make(map[string]json.Number, len(t.CategorySummary))
	for name, sum := range t.CategorySummary {
		categories[name] = json.Number(sum.String())
	}
	transactions := t.Transactions
	if transactions == nil {
		transactions = []*domain.Receipt{}
	}

	return json.Marshal(struct {
		Budget          *domain.MonthlyBudget  `json:"budget"`
		TotalSpent      json.Number            `json:"total_spent"`
		Transactions    []*domain.Receipt      `json:"transactions"`
		Suggestion      *string                `json:"suggestion"`
		CategorySummary map[string]json.Number `json:"category_summary"`
	}{
		Budget:          t.Budget,
		TotalSpent:      json.Number(t.TotalSpent.String()),
		Transactions:    transactions,
		Suggestion:      t.Suggestion,
		CategorySummary: categories,
	})
}

// Track summarizes spending for a calendar month. A receipt counts when it was
// uploaded in the month and its transaction date falls in the same month.
// When spending exceeds the budget a deal-finder suggestion is attached for
// the most expensive item.
func (s *Service) Track(ctx context.Context, year int, month time.Month) (*TrackerSummary, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, fmt.Errorf("Track: %d-%02d: %w", year, int(month), err)
	}

	budget, _, err := s.deps.Budgets.GetOrCreateBudget(ctx, year, month, s.opts.TrackerDefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("Track: %w", err)
	}

	uploaded, err := s.deps.Receipts.ListReceiptsUploadedIn(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("Track: %w", err)
	}

	summary := &TrackerSummary{
		Budget:          budget,
		TotalSpent:      decimal.Zero,
		Transactions:    []*domain.Receipt{},
		CategorySummary: map[string]decimal.Decimal{},
	}

	for _, r := range uploaded {
		if !r.HasData() {
			continue
		}
		date, ok := r.Data.TransactionDate()
		if !ok || date.Year != year || date.Month != month {
			continue
		}

		summary.Transactions = append(summary.Transactions, r)

		total, ok := r.Data.TotalAmount()
		if !ok {
			total = decimal.Zero
		}
		summary.TotalSpent = summary.TotalSpent.Add(total)
		category := r.CategoryOrDefault()
		summary.CategorySummary[category] = summary.CategorySummary[category].Add(total)

		for _, item := range r.Data.Items() {
			if !item.Priced {
				continue
			}
			if summary.TopItem == nil || item.Price > summary.TopItem.Price {
				top := item
				summary.TopItem = &top
			}
		}
	}

	if summary.TotalSpent.GreaterThan(budget.Limit) && summary.TopItem != nil && summary.TopItem.Price > 0 {
		summary.Suggestion = s.suggest(ctx, summary.TopItem.Name)
	}

	return summary, nil
}

func (s *Service) suggest(ctx context.Context, itemName string) *string {
	log := logger.FromContext(ctx)

	text, err := s.deps.DealFinder.Suggest(ctx, itemName)
	if err != nil {
		log.Warn().Err(err).Str("item", itemName).Msg("deal finder failed")
		text = SuggestionErrorPrefix + err.Error()
	}
	return &text
}
