package expenses

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/receipt-reader/internal/domain"
)

// ItemSummary describes one line item in an expense report. Text fields
// default to "N/A" when the key is missing and are nil when the extracted
// value is null.
type ItemSummary struct {
	Item     *string `json:"Item"`
	Price    float64 `json:"Price"`
	Merchant *string `json:"Merchant"`
	Date     *string `json:"Date"`
}

// ExpenseReport holds the most and least expensive items of a period.
type ExpenseReport struct {
	MostExpensive  *ItemSummary `json:"most_expensive"`
	LeastExpensive *ItemSummary `json:"least_expensive"`
}

// Report finds the most and least expensive line items. When both startDate
// and endDate are given (YYYY-MM-DD) only receipts whose transaction date lies
// in [startDate, endDate] are considered; otherwise every receipt is.
//
// Receipts are scanned in upload order and items in list order; ties keep the
// first item seen.
func (s *Service) Report(ctx context.Context, startDate, endDate string) (*ExpenseReport, error) {
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)

	var (
		start, end civil.Date
		filtered   = startDate != "" && endDate != ""
	)
	if filtered {
		var err error
		if start, err = civil.ParseDate(startDate); err != nil {
			return nil, fmt.Errorf("Report: start date %q: %w", startDate, ErrInvalidDate)
		}
		if end, err = civil.ParseDate(endDate); err != nil {
			return nil, fmt.Errorf("Report: end date %q: %w", endDate, ErrInvalidDate)
		}
	}

	all, err := s.deps.Receipts.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}

	var selected []*domain.Receipt
	// ListReceipts is newest first.
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if filtered {
			date, ok := r.Data.TransactionDate()
			if !r.HasData() || !ok || date.Before(start) || date.After(end) {
				continue
			}
		}
		selected = append(selected, r)
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("Report: %w", ErrNoReceipts)
	}

	report := &ExpenseReport{}
	for _, r := range selected {
		if !r.HasData() {
			continue
		}
		for _, item := range r.Data.Items() {
			if !item.Priced {
				continue
			}
			if report.MostExpensive == nil || item.Price > report.MostExpensive.Price {
				report.MostExpensive = summarize(r.Data, item)
			}
			if report.LeastExpensive == nil || item.Price < report.LeastExpensive.Price {
				report.LeastExpensive = summarize(r.Data, item)
			}
		}
	}

	if report.MostExpensive == nil {
		return nil, fmt.Errorf("Report: %w", ErrNoValidItems)
	}
	return report, nil
}

func summarize(data domain.ReceiptData, item domain.LineItem) *ItemSummary {
	var name *string
	if !item.NullName {
		name = &item.Name
	}
	return &ItemSummary{
		Item:     name,
		Price:    item.Price,
		Merchant: data.OptionalText(domain.KeyMerchantName, "N/A"),
		Date:     data.OptionalText(domain.KeyTransactionDate, "N/A"),
	}
}
