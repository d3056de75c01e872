package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Keys used by the extraction model in its JSON output.
const (
	KeyMerchantName    = "Merchant Name"
	KeyTransactionDate = "Transaction Date"
	KeyTransactionTime = "Transaction Time"
	KeyItems           = "Items"
	KeySubtotal        = "Subtotal"
	KeyTax             = "Tax"
	KeyTotalAmount     = "Total Amount"
	KeyCategory        = "Category"

	KeyItemName  = "Item"
	KeyItemPrice = "Price"
)

// DefaultCategory is used whenever a receipt has no usable category.
const DefaultCategory = "Other"

// DateLayout is the calendar date format used by the model and the API.
const DateLayout = "2006-01-02"

// Categories lists the spending categories the extraction model may assign.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Groceries",
	"Shopping",
	"Utilities",
	"Health",
	"Entertainment",
	DefaultCategory,
}

// Receipt is one uploaded image plus its optionally extracted data.
type Receipt struct {
	ID         int64       `json:"id"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Image      string      `json:"image"`
	Data       ReceiptData `json:"json_data"`
	Category   string      `json:"category"`
}

// HasData reports whether extraction has produced a payload for the receipt.
func (r *Receipt) HasData() bool {
	return r != nil && r.Data != nil
}

// CategoryOrDefault returns the denormalized category, or DefaultCategory when empty.
func (r *Receipt) CategoryOrDefault() string {
	if r == nil || strings.TrimSpace(r.Category) == "" {
		return DefaultCategory
	}
	return r.Category
}

// ReceiptData is the raw JSON object returned by the extraction model.
//
// The payload is only as reliable as the model that produced it, so every
// accessor tolerates missing keys, nulls and mistyped values and reports them
// as absent instead of failing.
type ReceiptData map[string]any

// ParseReceiptData decodes a JSON object. Anything other than an object is rejected.
func ParseReceiptData(raw []byte) (ReceiptData, error) {
	var data ReceiptData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ParseReceiptData: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("ParseReceiptData: expected a JSON object, got null")
	}
	return data, nil
}

// Has reports whether the key is present, even when its value is null.
func (d ReceiptData) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns the value of key when it is a JSON string.
func (d ReceiptData) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// StringOr returns the value of key rendered as text, or def when the key is
// missing or null.
func (d ReceiptData) StringOr(key, def string) string {
	return textOr(d[key], def)
}

// OptionalText is StringOr that keeps an explicit null: it returns nil when
// key is present with a null value and def when key is missing.
func (d ReceiptData) OptionalText(key, def string) *string {
	v, ok := d[key]
	if !ok {
		return &def
	}
	if v == nil {
		return nil
	}
	s := textOr(v, def)
	return &s
}

// MerchantName returns the merchant, or "" when unknown.
func (d ReceiptData) MerchantName() string {
	s, _ := d.String(KeyMerchantName)
	return s
}

// TransactionDate parses "Transaction Date" as a calendar date.
func (d ReceiptData) TransactionDate() (civil.Date, bool) {
	s, ok := d.String(KeyTransactionDate)
	if !ok {
		return civil.Date{}, false
	}
	date, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, false
	}
	return date, true
}

// Category returns the model-assigned category, or "" when absent.
func (d ReceiptData) Category() string {
	s, _ := d.String(KeyCategory)
	return strings.TrimSpace(s)
}

// TotalAmount returns "Total Amount" as a decimal. Absent or non-numeric totals
// report ok=false.
func (d ReceiptData) TotalAmount() (decimal.Decimal, bool) {
	return decimalValue(d[KeyTotalAmount])
}

// Subtotal returns "Subtotal" as a decimal when numeric.
func (d ReceiptData) Subtotal() (decimal.Decimal, bool) {
	return decimalValue(d[KeySubtotal])
}

// Tax returns "Tax" as a decimal when numeric.
func (d ReceiptData) Tax() (decimal.Decimal, bool) {
	return decimalValue(d[KeyTax])
}

// LineItem is one entry of the "Items" array.
type LineItem struct {
	Name   string
	Price  float64
	Priced bool
	// NullName is set when "Item" is present but null; Name is then "N/A".
	NullName bool
}

// Items returns the entries of "Items" in order. Non-object entries are
// dropped; entries with a missing or non-numeric price have Priced=false.
func (d ReceiptData) Items() []LineItem {
	raw, ok := d[KeyItems].([]any)
	if !ok {
		return nil
	}
	items := make([]LineItem, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, present := obj[KeyItemName]
		item := LineItem{Name: textOr(name, "N/A"), NullName: present && name == nil}
		item.Price, item.Priced = floatValue(obj[KeyItemPrice])
		items = append(items, item)
	}
	return items
}

func textOr(v any, def string) string {
	switch val := v.(type) {
	case nil:
		return def
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// floatValue accepts JSON numbers and numeric strings.
func floatValue(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func decimalValue(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
