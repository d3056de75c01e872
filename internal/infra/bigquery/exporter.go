// Package bigquery exports processed receipts to a BigQuery dataset for
// analytics and manages that dataset's schema.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Exporter writes receipts and their line items with the streaming insert API.
// It holds a shared client for the lifetime of the process.
type Exporter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

// NewExporter creates an exporter for projectID.datasetID. credentialsFile is
// optional; application default credentials are used when empty.
func NewExporter(ctx context.Context, projectID, datasetID, credentialsFile string) (*Exporter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return &Exporter{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
	}, nil
}

// Client exposes the shared client for schema migrations.
func (e *Exporter) Client() *bigquery.Client { return e.client }

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExportReceipt inserts the receipt row followed by its line items. Insert IDs
// are derived from the receipt ID so retries within BigQuery's deduplication
// window do not duplicate rows.
func (e *Exporter) ExportReceipt(ctx context.Context, r *domain.Receipt) error {
	row, lines, err := NewReceiptRows(r, e.now())
	if err != nil {
		return fmt.Errorf("ExportReceipt: %w", err)
	}

	dataset := e.client.Dataset(e.datasetID)

	receiptSaver := &bigquery.StructSaver{Struct: row, InsertID: fmt.Sprintf("receipt-%d", r.ID)}
	if err := dataset.Table(receiptsTable).Inserter().Put(ctx, receiptSaver); err != nil {
		return fmt.Errorf("ExportReceipt: inserting receipt %d: %w", r.ID, err)
	}

	if len(lines) > 0 {
		savers := make([]*bigquery.StructSaver, 0, len(lines))
		for _, line := range lines {
			savers = append(savers, &bigquery.StructSaver{
				Struct:   line,
				InsertID: fmt.Sprintf("receipt-%d-line-%d", line.ReceiptID, line.LineIndex),
			})
		}
		if err := dataset.Table(receiptLineItemsTable).Inserter().Put(ctx, savers); err != nil {
			return fmt.Errorf("ExportReceipt: inserting %d line items for receipt %d: %w", len(lines), r.ID, err)
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int64("receipt_id", r.ID).
		Int("line_items", len(lines)).
		Msg("Exported receipt to BigQuery")
	return nil
}

// ExportedReceiptIDs returns the IDs already present in the receipts table.
func (e *Exporter) ExportedReceiptIDs(ctx context.Context) (map[int64]bool, error) {
	query := fmt.Sprintf("SELECT DISTINCT receipt_id FROM `%s.%s.%s`", e.projectID, e.datasetID, receiptsTable)

	it, err := e.client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExportedReceiptIDs: reading query: %w", err)
	}

	ids := make(map[int64]bool)
	for {
		var row struct {
			ReceiptID int64 `bigquery:"receipt_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExportedReceiptIDs: iterating: %w", err)
		}
		ids[row.ReceiptID] = true
	}
	return ids, nil
}
