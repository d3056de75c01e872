package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/receipt-reader/internal/domain"
)

const receiptsTable = "receipts"

// ReceiptRow is one processed receipt in the analytics dataset.
type ReceiptRow struct {
	ReceiptID int64  `bigquery:"receipt_id"` // REQUIRED
	Image     string `bigquery:"image"`      // REQUIRED

	UploadedTS time.Time `bigquery:"uploaded_ts"` // REQUIRED

	MerchantName    bigquery.NullString `bigquery:"merchant_name"`    // NULLABLE
	PurchaseDate    bigquery.NullDate   `bigquery:"purchase_date"`    // DATE, NULLABLE
	TransactionTime bigquery.NullString `bigquery:"transaction_time"` // NULLABLE

	Category string `bigquery:"category"` // REQUIRED

	TotalAmount    bigquery.NullFloat64 `bigquery:"total_amount"`    // NUMERIC, NULLABLE
	SubtotalAmount bigquery.NullFloat64 `bigquery:"subtotal_amount"` // NUMERIC, NULLABLE
	TaxAmount      bigquery.NullFloat64 `bigquery:"tax_amount"`      // NUMERIC, NULLABLE

	ItemCount int64 `bigquery:"item_count"` // REQUIRED

	RawJSON string `bigquery:"raw_json"` // STRING, REQUIRED

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// NewReceiptRows converts a processed receipt into its receipt row and line
// item rows. Receipts without extracted data cannot be exported.
func NewReceiptRows(r *domain.Receipt, exportedAt time.Time) (*ReceiptRow, []*ReceiptLineItemRow, error) {
	if !r.HasData() {
		return nil, nil, fmt.Errorf("NewReceiptRows: receipt %d has no extracted data", r.ID)
	}

	raw, err := json.Marshal(r.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("NewReceiptRows: encoding data: %w", err)
	}

	items := r.Data.Items()
	row := &ReceiptRow{
		ReceiptID:  r.ID,
		Image:      r.Image,
		UploadedTS: r.UploadedAt.UTC(),
		Category:   r.CategoryOrDefault(),
		ItemCount:  int64(len(items)),
		RawJSON:    string(raw),
		ExportedTS: exportedAt.UTC(),
	}

	if name := r.Data.MerchantName(); name != "" {
		row.MerchantName = bigquery.NullString{StringVal: name, Valid: true}
	}
	if date, ok := r.Data.TransactionDate(); ok {
		row.PurchaseDate = bigquery.NullDate{Date: date, Valid: true}
	}
	if t, ok := r.Data.String(domain.KeyTransactionTime); ok && t != "" {
		row.TransactionTime = bigquery.NullString{StringVal: t, Valid: true}
	}
	if total, ok := r.Data.TotalAmount(); ok {
		row.TotalAmount = bigquery.NullFloat64{Float64: total.InexactFloat64(), Valid: true}
	}
	if subtotal, ok := r.Data.Subtotal(); ok {
		row.SubtotalAmount = bigquery.NullFloat64{Float64: subtotal.InexactFloat64(), Valid: true}
	}
	if tax, ok := r.Data.Tax(); ok {
		row.TaxAmount = bigquery.NullFloat64{Float64: tax.InexactFloat64(), Valid: true}
	}

	lines := make([]*ReceiptLineItemRow, 0, len(items))
	for i, item := range items {
		line := &ReceiptLineItemRow{
			ReceiptID:    r.ID,
			LineIndex:    int64(i),
			Description:  item.Name,
			CategoryName: row.Category,
		}
		if item.Priced {
			line.TotalPrice = bigquery.NullFloat64{Float64: item.Price, Valid: true}
		}
		lines = append(lines, line)
	}

	return row, lines, nil
}
