package notionsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the receipts database.
const (
	PropReceipt   = "Receipt"
	PropReceiptID = "Receipt ID"
	PropDate      = "Date"
	PropCategory  = "Category"
	PropTotal     = "Total"
	PropItems     = "Items"
	PropImage     = "Image"
	PropUploaded  = "Uploaded"
)

// Notion caps a single rich text object at 2000 characters.
const maxRichTextLen = 2000

// ReceiptToNotionProperties converts a processed receipt to Notion properties.
// The title is the merchant name, falling back to "Receipt #<id>".
func ReceiptToNotionProperties(r *domain.Receipt) notionapi.Properties {
	title := r.Data.MerchantName()
	if title == "" {
		title = fmt.Sprintf("Receipt #%d", r.ID)
	}

	props := notionapi.Properties{
		PropReceipt: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropReceiptID: notionapi.NumberProperty{
			Number: float64(r.ID),
		},
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: r.CategoryOrDefault(),
			},
		},
		PropImage: notionapi.RichTextProperty{
			RichText: richText(r.Image),
		},
	}

	if !r.UploadedAt.IsZero() {
		props[PropUploaded] = dateProperty(r.UploadedAt.UTC())
	}

	// Transaction date
	if date, ok := r.Data.TransactionDate(); ok {
		props[PropDate] = dateProperty(date.In(time.UTC))
	}

	// Total amount
	if total, ok := r.Data.TotalAmount(); ok {
		props[PropTotal] = notionapi.NumberProperty{
			Number: total.InexactFloat64(),
		}
	}

	if items := formatItems(r.Data.Items()); items != "" {
		props[PropItems] = notionapi.RichTextProperty{
			RichText: richText(items),
		}
	}

	return props
}

// formatItems renders line items as "Name 1.50, Other" and truncates to the
// rich text limit.
func formatItems(items []domain.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Priced {
			parts = append(parts, item.Name+" "+strconv.FormatFloat(item.Price, 'f', 2, 64))
		} else {
			parts = append(parts, item.Name)
		}
	}

	s := strings.Join(parts, ", ")
	if r := []rune(s); len(r) > maxRichTextLen {
		s = string(r[:maxRichTextLen-1]) + "…"
	}
	return s
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &d,
		},
	}
}

// extractReceiptID returns the "Receipt ID" number of a page, or 0.
func extractReceiptID(page notionapi.Page) int64 {
	switch prop := page.Properties[PropReceiptID].(type) {
	case *notionapi.NumberProperty:
		return int64(prop.Number)
	case notionapi.NumberProperty:
		return int64(prop.Number)
	}
	return 0
}
