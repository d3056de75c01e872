package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize is the Notion query page size.
	BatchSize = 100
)

// Options controls a receipt sync.
type Options struct {
	// DryRun logs the planned changes without calling the write APIs.
	DryRun bool
	// Prune archives pages whose receipt no longer exists.
	Prune bool
}

// Result counts the outcome of a sync.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Skipped  int
	Failed   int
}

// SyncReceipts mirrors processed receipts into a Notion database. Pages are
// matched on the "Receipt ID" property, so repeated runs update in place.
// Receipts without extracted data are skipped. A failing page is logged and
// counted; the sync continues.
func SyncReceipts(ctx context.Context, notion ReceiptPages, notionDBID string, receipts []*domain.Receipt, opts Options) (Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("receipt_count", len(receipts)).
		Bool("dry_run", opts.DryRun).
		Bool("prune", opts.Prune).
		Msg("Starting receipt sync to Notion")

	notionPages, err := listAllPages(ctx, notion, notionDBID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Map receipt ID -> page ID
	existing := make(map[int64]string, len(notionPages))
	for _, page := range notionPages {
		if id := extractReceiptID(page); id != 0 {
			existing[id] = string(page.ID)
		}
	}

	var result Result
	known := make(map[int64]bool, len(receipts))
	for _, r := range receipts {
		known[r.ID] = true
		if !r.HasData() {
			result.Skipped++
			continue
		}

		pageID, found := existing[r.ID]
		if opts.DryRun {
			if found {
				log.Info().Int64("receipt_id", r.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update existing Notion page")
				result.Updated++
			} else {
				log.Info().Int64("receipt_id", r.ID).Msg("[DRY RUN] Would create new Notion page")
				result.Created++
			}
			continue
		}

		props := ReceiptToNotionProperties(r)
		if found {
			if err := notion.UpdateReceiptPage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Int64("receipt_id", r.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++
			continue
		}

		newID, err := notion.CreateReceiptPage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Int64("receipt_id", r.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().Int64("receipt_id", r.ID).Str("page_id", string(newID)).Msg("Created Notion page")
		result.Created++
	}

	if opts.Prune {
		for id, pageID := range existing {
			if known[id] {
				continue
			}
			if opts.DryRun {
				log.Info().Int64("receipt_id", id).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
				result.Archived++
				continue
			}
			if err := notion.ArchiveReceiptPage(ctx, pageID); err != nil {
				log.Warn().Err(err).Int64("receipt_id", id).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
				result.Failed++
				continue
			}
			result.Archived++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Receipt sync completed")

	return result, nil
}

// listAllPages follows the cursor until the database is exhausted.
func listAllPages(ctx context.Context, notion ReceiptPages, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := notion.ListReceiptPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
