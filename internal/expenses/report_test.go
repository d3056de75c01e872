package expenses

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_MinAndMaxWithinRange(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-05", 100, item("Shoes", 100)), "Shopping")
	f.addReceipt(t, receiptData("2024-01-10", 250, item("Jacket", 250)), "Shopping")
	f.addReceipt(t, receiptData("2024-02-01", 999, item("Laptop", 999)), "Shopping")

	report, err := f.svc.Report(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	assert.Equal(t, &ItemSummary{Item: text("Jacket"), Price: 250, Merchant: text("Store"), Date: text("2024-01-10")}, report.MostExpensive)
	assert.Equal(t, &ItemSummary{Item: text("Shoes"), Price: 100, Merchant: text("Store"), Date: text("2024-01-05")}, report.LeastExpensive)
}

func TestReport_InclusiveBounds(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-01", 5, item("A", 5)), "Other")
	f.addReceipt(t, receiptData("2024-01-31", 7, item("B", 7)), "Other")

	report, err := f.svc.Report(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "B", *report.MostExpensive.Item)
	assert.Equal(t, "A", *report.LeastExpensive.Item)
}

func TestReport_ReceiptWithoutItemsIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-05", 42.0), "Groceries")

	_, err := f.svc.Report(context.Background(), "2024-01-01", "2024-01-31")
	assert.ErrorIs(t, err, ErrNoValidItems)
}

func TestReport_StartAfterEndIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-05", 100, item("Shoes", 100)), "Shopping")

	_, err := f.svc.Report(context.Background(), "2024-01-31", "2024-01-01")
	assert.ErrorIs(t, err, ErrNoReceipts)
}

func TestReport_InvalidDate(t *testing.T) {
	f := newFixture(t)

	for _, tc := range [][2]string{{"2024/01/01", "2024-01-31"}, {"2024-01-01", "31-01-2024"}, {"2024-02-30", "2024-03-01"}} {
		_, err := f.svc.Report(context.Background(), tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidDate, tc)
	}
}

func TestReport_SingleBoundSelectsAllReceipts(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2023-06-01", 10, item("Old", 10)), "Other")
	f.addReceipt(t, receiptData("2024-01-05", 20, item("New", 20)), "Other")

	report, err := f.svc.Report(context.Background(), "2024-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, "New", *report.MostExpensive.Item)
	assert.Equal(t, "Old", *report.LeastExpensive.Item)
}

func TestReport_NoReceiptsAtAll(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Report(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoReceipts)
}

func TestReport_UnfilteredReceiptsWithoutDataHaveNoItems(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, nil, "")

	_, err := f.svc.Report(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoValidItems)
}

func TestReport_SkipsUnpricedItemsAndBadDates(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-03", 20,
		item("Free sample", nil),
		item("Mystery", "call for price"),
		map[string]any{"Item": "No price"},
		item("Bread", "3.50"),
		"not an object",
	), "Groceries")
	f.addReceipt(t, receiptData("not a date", 1000, item("Ignored", 1000)), "Other")
	f.addReceipt(t, domain.ReceiptData{"Items": []any{item("No date", 500)}}, "Other")

	report, err := f.svc.Report(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "Bread", *report.MostExpensive.Item)
	assert.Equal(t, 3.5, report.MostExpensive.Price)
	assert.Equal(t, report.MostExpensive, report.LeastExpensive)
}

func TestReport_TiesKeepFirstSeen(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, receiptData("2024-01-02", 100, item("First", 50), item("Second", 50)), "Other")
	f.addReceipt(t, receiptData("2024-01-03", 100, item("Third", 50)), "Other")

	report, err := f.svc.Report(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "First", *report.MostExpensive.Item)
	assert.Equal(t, "First", *report.LeastExpensive.Item)
}

func text(s string) *string { return &s }

func TestReport_DefaultsForMissingFields(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, domain.ReceiptData{
		"Items": []any{map[string]any{"Price": 9.99}},
	}, "Other")

	report, err := f.svc.Report(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, &ItemSummary{Item: text("N/A"), Price: 9.99, Merchant: text("N/A"), Date: text("N/A")}, report.MostExpensive)
}

func TestReport_KeepsExplicitNulls(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, domain.ReceiptData{
		"Merchant Name":    nil,
		"Transaction Date": nil,
		"Items":            []any{map[string]any{"Item": nil, "Price": 5.0}},
	}, "Other")

	report, err := f.svc.Report(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, &ItemSummary{Price: 5}, report.MostExpensive)

	body, err := json.Marshal(report.MostExpensive)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Item":null,"Price":5,"Merchant":null,"Date":null}`, string(body))
}
