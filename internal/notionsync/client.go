// Package notionsync mirrors processed receipts into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// Client talks to the Notion API on behalf of one integration token.
type Client struct {
	api *notionapi.Client
}

var _ ReceiptPages = (*Client)(nil)

// NewClient creates a client for an integration token.
func NewClient(token string) *Client {
	return &Client{api: notionapi.NewClient(notionapi.Token(token))}
}

func (c *Client) CreateReceiptPage(ctx context.Context, databaseID string, props notionapi.Properties) (notionapi.ObjectID, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: props,
	})
	if err != nil {
		return "", fmt.Errorf("create receipt page: %w", err)
	}
	return page.ID, nil
}

func (c *Client) UpdateReceiptPage(ctx context.Context, pageID string, props notionapi.Properties) error {
	if _, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return fmt.Errorf("update receipt page %s: %w", pageID, err)
	}
	return nil
}

// ListReceiptPages queries up to BatchSize pages.
func (c *Client) ListReceiptPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: BatchSize}
	if cursor != "" {
		req.StartCursor = cursor
	}

	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("list receipt pages: %w", err)
	}
	return resp, nil
}

// ArchiveReceiptPage moves a page to the Notion trash.
func (c *Client) ArchiveReceiptPage(ctx context.Context, pageID string) error {
	if _, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("archive receipt page %s: %w", pageID, err)
	}
	return nil
}
