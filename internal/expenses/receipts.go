package expenses

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/dvloznov/receipt-reader/internal/metrics"
)

// ProcessReceipt stores the uploaded image, records the receipt, extracts its
// data and persists the result. On extraction failure the receipt is kept
// without data and the returned error wraps ErrExtractionFailed.
func (s *Service) ProcessReceipt(ctx context.Context, filename, contentType string, image []byte) (*domain.Receipt, error) {
	log := logger.FromContext(ctx)

	if len(image) == 0 {
		return nil, fmt.Errorf("ProcessReceipt: %w: empty image", ErrInvalidUpload)
	}

	ref, err := s.deps.Images.Save(ctx, filename, contentType, image)
	if err != nil {
		return nil, fmt.Errorf("ProcessReceipt: store image: %w", err)
	}

	receipt, err := s.deps.Receipts.CreateReceipt(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("ProcessReceipt: %w", err)
	}
	log = log.With().Int64("receipt_id", receipt.ID).Str("image", ref).Logger()

	data, err := s.deps.Scanner.Extract(ctx, image, contentType)
	metrics.ReceiptProcessed(err)
	if err != nil {
		log.Error().Err(err).Msg("receipt extraction failed")
		return receipt, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	category := data.Category()
	if category == "" {
		category = domain.DefaultCategory
	}
	if err := s.deps.Receipts.UpdateExtraction(ctx, receipt.ID, data, category); err != nil {
		return receipt, fmt.Errorf("ProcessReceipt: %w", err)
	}
	receipt.Data = data
	receipt.Category = category

	log.Info().
		Str("merchant", data.MerchantName()).
		Str("category", category).
		Int("items", len(data.Items())).
		Msg("receipt processed")

	if s.deps.Exporter != nil {
		err := s.deps.Exporter.ExportReceipt(ctx, receipt)
		metrics.ReceiptExported(err)
		if err != nil {
			log.Warn().Err(err).Msg("analytics export failed")
		}
	}

	return receipt, nil
}

// ListReceipts returns every receipt, most recent upload first.
func (s *Service) ListReceipts(ctx context.Context) ([]*domain.Receipt, error) {
	receipts, err := s.deps.Receipts.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListReceipts: %w", err)
	}
	return receipts, nil
}
