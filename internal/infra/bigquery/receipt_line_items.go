package bigquery

import "cloud.google.com/go/bigquery"

const receiptLineItemsTable = "receipt_line_items"

// ReceiptLineItemRow is one entry of a receipt's "Items" list.
type ReceiptLineItemRow struct {
	ReceiptID int64 `bigquery:"receipt_id"` // REQUIRED
	LineIndex int64 `bigquery:"line_index"` // REQUIRED

	Description string `bigquery:"description"` // REQUIRED

	TotalPrice bigquery.NullFloat64 `bigquery:"total_price"` // NUMERIC, NULLABLE

	CategoryName string `bigquery:"category_name"` // NULLABLE
}
