package expenses

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessReceipt_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var gotMIME string
	f.scanner.ExtractFunc = func(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
		gotMIME = mimeType
		return domain.ReceiptData{
			"Merchant Name":    "Cafe",
			"Transaction Date": "2024-01-15",
			"Items":            []any{map[string]any{"Item": "Latte", "Price": 4.5}},
			"Total Amount":     4.5,
			"Category":         "Food & Dining",
		}, nil
	}

	receipt, err := f.svc.ProcessReceipt(ctx, "latte.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotMIME)
	assert.Equal(t, "receipts/latte.jpg", receipt.Image)
	assert.Equal(t, "Food & Dining", receipt.Category)
	assert.Equal(t, "Cafe", receipt.Data.MerchantName())

	stored, err := f.store.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining", stored.Category)
	assert.True(t, stored.HasData())

	require.Len(t, f.exporter.exported, 1)
	assert.Equal(t, receipt.ID, f.exporter.exported[0].ID)
}

func TestProcessReceipt_MissingCategoryDefaultsToOther(t *testing.T) {
	f := newFixture(t)
	f.scanner.ExtractFunc = func(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
		return domain.ReceiptData{"Category": nil, "Items": []any{}}, nil
	}

	receipt, err := f.svc.ProcessReceipt(context.Background(), "r.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCategory, receipt.Category)
}

func TestProcessReceipt_ExtractionFailureKeepsReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scanner.ExtractFunc = func(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
		return nil, errors.New("model unavailable")
	}

	receipt, err := f.svc.ProcessReceipt(ctx, "r.jpg", "image/jpeg", []byte("jpeg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "model unavailable")

	require.NotNil(t, receipt)
	stored, err := f.store.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasData())
	assert.Empty(t, f.exporter.exported)
}

func TestProcessReceipt_EmptyImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessReceipt(context.Background(), "r.jpg", "image/jpeg", nil)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	receipts, err := f.svc.ListReceipts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestProcessReceipt_ExportFailureDoesNotFailUpload(t *testing.T) {
	f := newFixture(t)
	f.scanner.ExtractFunc = func(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
		return domain.ReceiptData{"Category": "Health"}, nil
	}
	f.exporter.ExportReceiptFunc = func(ctx context.Context, r *domain.Receipt) error {
		return errors.New("bigquery down")
	}

	receipt, err := f.svc.ProcessReceipt(context.Background(), "r.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "Health", receipt.Category)
}

func TestProcessReceipt_WithoutExporter(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Exporter = nil
	f.scanner.ExtractFunc = func(ctx context.Context, image []byte, mimeType string) (domain.ReceiptData, error) {
		return domain.ReceiptData{}, nil
	}

	_, err := f.svc.ProcessReceipt(context.Background(), "r.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
}

func TestListReceipts_MostRecentFirst(t *testing.T) {
	f := newFixture(t)
	first := f.addReceipt(t, nil, "")
	second := f.addReceipt(t, nil, "")

	receipts, err := f.svc.ListReceipts(context.Background())
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, second.ID, receipts[0].ID)
	assert.Equal(t, first.ID, receipts[1].ID)
}
