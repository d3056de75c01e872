package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// ReceiptPages is the subset of the Notion API the receipt sync needs.
type ReceiptPages interface {
	// CreateReceiptPage adds a page to the database and returns its ID.
	CreateReceiptPage(ctx context.Context, databaseID string, props notionapi.Properties) (notionapi.ObjectID, error)
	UpdateReceiptPage(ctx context.Context, pageID string, props notionapi.Properties) error
	// ListReceiptPages returns one page of results starting at cursor; an
	// empty cursor starts from the beginning.
	ListReceiptPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)
	ArchiveReceiptPage(ctx context.Context, pageID string) error
}
