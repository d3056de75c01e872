package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePages serves an in-memory database in pages of pageSize.
type fakePages struct {
	pages      []notionapi.Page
	pageSize   int
	created    []notionapi.Properties
	updated    map[string]notionapi.Properties
	archived   []string
	createErr  error
	queryErr   error
	queryCalls int
}

func newFakePages(pages ...notionapi.Page) *fakePages {
	return &fakePages{pages: pages, pageSize: 2, updated: map[string]notionapi.Properties{}}
}

func (f *fakePages) CreateReceiptPage(ctx context.Context, databaseID string, props notionapi.Properties) (notionapi.ObjectID, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, props)
	return notionapi.ObjectID(fmt.Sprintf("new-%d", len(f.created))), nil
}

func (f *fakePages) UpdateReceiptPage(ctx context.Context, pageID string, props notionapi.Properties) error {
	f.updated[pageID] = props
	return nil
}

func (f *fakePages) ListReceiptPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	start := 0
	if cursor != "" {
		fmt.Sscanf(string(cursor), "%d", &start)
	}
	end := start + f.pageSize
	if end > len(f.pages) {
		end = len(f.pages)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: f.pages[start:end]}
	if end < len(f.pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func (f *fakePages) ArchiveReceiptPage(ctx context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func page(id string, receiptID float64) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropReceiptID: &notionapi.NumberProperty{Number: receiptID},
		},
	}
}

func receipt(id int64) *domain.Receipt {
	return &domain.Receipt{
		ID:         id,
		UploadedAt: time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC),
		Image:      fmt.Sprintf("receipts/%d.jpg", id),
		Category:   "Groceries",
		Data: domain.ReceiptData{
			"Merchant Name":    "Fresh Market",
			"Transaction Date": "2024-03-14",
			"Total Amount":     "42.10",
			"Items": []any{
				map[string]any{"Item": "Apples", "Price": 3.5},
				map[string]any{"Item": "Bag"},
			},
		},
	}
}

func TestSyncReceipts_CreatesUpdatesAndPrunes(t *testing.T) {
	notion := newFakePages(
		page("page-1", 1),
		page("page-untracked", 0),
		page("page-9", 9),
	)
	receipts := []*domain.Receipt{
		receipt(1),
		receipt(2),
		{ID: 3, Image: "receipts/3.jpg"},
	}

	result, err := SyncReceipts(context.Background(), notion, "db", receipts, Options{Prune: true})
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 1, Updated: 1, Archived: 1, Skipped: 1}, result)
	assert.Equal(t, 2, notion.queryCalls)
	assert.Contains(t, notion.updated, "page-1")
	require.Len(t, notion.created, 1)
	assert.Equal(t, float64(2), notion.created[0][PropReceiptID].(notionapi.NumberProperty).Number)
	assert.Equal(t, []string{"page-9"}, notion.archived)
}

func TestSyncReceipts_DryRun(t *testing.T) {
	notion := newFakePages(page("page-1", 1), page("page-9", 9))

	result, err := SyncReceipts(context.Background(), notion, "db", []*domain.Receipt{receipt(1), receipt(2)}, Options{DryRun: true, Prune: true})
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 1, Updated: 1, Archived: 1}, result)
	assert.Empty(t, notion.created)
	assert.Empty(t, notion.updated)
	assert.Empty(t, notion.archived)
}

func TestSyncReceipts_FailuresAreCounted(t *testing.T) {
	notion := newFakePages()
	notion.createErr = errors.New("rate limited")

	result, err := SyncReceipts(context.Background(), notion, "db", []*domain.Receipt{receipt(1), receipt(2)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Created)
}

func TestSyncReceipts_QueryFailureAborts(t *testing.T) {
	notion := newFakePages()
	notion.queryErr = errors.New("unauthorized")

	_, err := SyncReceipts(context.Background(), notion, "db", []*domain.Receipt{receipt(1)}, Options{})
	assert.ErrorContains(t, err, "unauthorized")
	assert.Empty(t, notion.created)
}

func TestReceiptToNotionProperties(t *testing.T) {
	props := ReceiptToNotionProperties(receipt(7))

	title := props[PropReceipt].(notionapi.TitleProperty)
	assert.Equal(t, "Fresh Market", title.Title[0].Text.Content)
	assert.Equal(t, float64(7), props[PropReceiptID].(notionapi.NumberProperty).Number)
	assert.Equal(t, "Groceries", props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.InDelta(t, 42.10, props[PropTotal].(notionapi.NumberProperty).Number, 1e-9)
	assert.Equal(t, "Apples 3.50, Bag", props[PropItems].(notionapi.RichTextProperty).RichText[0].Text.Content)

	date := props[PropDate].(notionapi.DateProperty)
	assert.Equal(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC), time.Time(*date.Date.Start))
}

func TestReceiptToNotionProperties_Sparse(t *testing.T) {
	props := ReceiptToNotionProperties(&domain.Receipt{ID: 5, Data: domain.ReceiptData{}})

	title := props[PropReceipt].(notionapi.TitleProperty)
	assert.Equal(t, "Receipt #5", title.Title[0].Text.Content)
	assert.Equal(t, domain.DefaultCategory, props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.NotContains(t, props, PropDate)
	assert.NotContains(t, props, PropTotal)
	assert.NotContains(t, props, PropItems)
	assert.NotContains(t, props, PropUploaded)
}

func TestFormatItems_Truncates(t *testing.T) {
	items := make([]domain.LineItem, 0, 500)
	for i := 0; i < 500; i++ {
		items = append(items, domain.LineItem{Name: "Something", Price: 1, Priced: true})
	}

	got := []rune(formatItems(items))
	assert.Len(t, got, maxRichTextLen)
	assert.Equal(t, '…', got[len(got)-1])
}
