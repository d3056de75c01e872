package ai

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/logger"
	"google.golang.org/genai"
)

// ReceiptScanner extracts structured data from receipt images.
type ReceiptScanner struct {
	gen   Generator
	model string
}

// NewReceiptScanner creates a scanner that calls model through gen.
func NewReceiptScanner(gen Generator, model string) *ReceiptScanner {
	return &ReceiptScanner{gen: gen, model: model}
}

// Extract sends the image to the model and decodes the single JSON object it returns.
func (s *ReceiptScanner) Extract(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("Extract: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	rawText, err := generateText(ctx, s.gen, "scanner", s.model, nil,
		&genai.Part{Text: buildExtractionPrompt()},
		&genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     image,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}

	data, err := domain.ParseReceiptData([]byte(cleanModelJSON(rawText)))
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("raw_response", rawText).Msg("model returned unusable receipt JSON")
		return nil, fmt.Errorf("Extract: %w", err)
	}
	return data, nil
}
