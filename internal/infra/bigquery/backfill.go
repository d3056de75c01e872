package bigquery

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultBackfillConcurrency bounds parallel inserts during a backfill.
const DefaultBackfillConcurrency = 4

// ReceiptExporter is the part of Exporter used by Backfill.
type ReceiptExporter interface {
	ExportedReceiptIDs(ctx context.Context) (map[int64]bool, error)
	ExportReceipt(ctx context.Context, r *domain.Receipt) error
}

// BackfillResult summarizes a Backfill run.
type BackfillResult struct {
	Exported       int
	AlreadyPresent int
	Unprocessed    int
	Failed         int
}

// Backfill exports every processed receipt that is not yet in the dataset,
// running at most concurrency inserts at once (DefaultBackfillConcurrency
// when <= 0). A failure on one receipt is logged and counted; the run continues.
func Backfill(ctx context.Context, exp ReceiptExporter, receipts []*domain.Receipt, concurrency int) (BackfillResult, error) {
	log := logger.FromContext(ctx)
	if concurrency <= 0 {
		concurrency = DefaultBackfillConcurrency
	}

	var result BackfillResult
	existing, err := exp.ExportedReceiptIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("Backfill: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, r := range receipts {
		switch {
		case !r.HasData():
			result.Unprocessed++
			continue
		case existing[r.ID]:
			result.AlreadyPresent++
			continue
		}

		g.Go(func() error {
			err := exp.ExportReceipt(gctx, r)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Int64("receipt_id", r.ID).Msg("Failed to export receipt")
				result.Failed++
				return nil
			}
			result.Exported++
			return nil
		})
	}

	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()
	return result, nil
}
