package domain

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) ReceiptData {
	t.Helper()
	data, err := ParseReceiptData([]byte(raw))
	require.NoError(t, err)
	return data
}

func TestParseReceiptData(t *testing.T) {
	_, err := ParseReceiptData([]byte(`null`))
	assert.Error(t, err)

	_, err = ParseReceiptData([]byte(`[1,2]`))
	assert.Error(t, err)

	data, err := ParseReceiptData([]byte(`{"Merchant Name":"Cafe"}`))
	require.NoError(t, err)
	assert.Equal(t, "Cafe", data.MerchantName())
}

func TestReceiptData_TransactionDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want civil.Date
		ok   bool
	}{
		{"valid", `{"Transaction Date":"2024-05-03"}`, civil.Date{Year: 2024, Month: time.May, Day: 3}, true},
		{"missing", `{}`, civil.Date{}, false},
		{"null", `{"Transaction Date":null}`, civil.Date{}, false},
		{"wrong format", `{"Transaction Date":"03/05/2024"}`, civil.Date{}, false},
		{"not a string", `{"Transaction Date":20240503}`, civil.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mustParse(t, tt.raw).TransactionDate()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReceiptData_Items(t *testing.T) {
	data := mustParse(t, `{"Items":[
		{"Item":"Coffee","Price":3.5},
		{"Item":"Bagel","Price":"2.25"},
		{"Item":"Napkin","Price":"free"},
		{"Price":1},
		"garbage",
		{"Item":"Tip"}
	]}`)

	items := data.Items()
	require.Len(t, items, 5)

	assert.Equal(t, LineItem{Name: "Coffee", Price: 3.5, Priced: true}, items[0])
	assert.Equal(t, LineItem{Name: "Bagel", Price: 2.25, Priced: true}, items[1])
	assert.False(t, items[2].Priced)
	assert.Equal(t, "N/A", items[3].Name)
	assert.False(t, items[3].NullName)
	assert.True(t, items[3].Priced)
	assert.False(t, items[4].Priced)
}

func TestReceiptData_ItemsNullName(t *testing.T) {
	items := mustParse(t, `{"Items":[{"Item":null,"Price":2}]}`).Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].NullName)
	assert.Equal(t, "N/A", items[0].Name)
}

func TestReceiptData_ItemsNotAList(t *testing.T) {
	assert.Empty(t, mustParse(t, `{"Items":"none"}`).Items())
	assert.Empty(t, mustParse(t, `{}`).Items())
}

func TestReceiptData_TotalAmount(t *testing.T) {
	total, ok := mustParse(t, `{"Total Amount":"12.50"}`).TotalAmount()
	assert.True(t, ok)
	assert.True(t, total.Equal(decimal.RequireFromString("12.5")))

	total, ok = mustParse(t, `{"Total Amount":7.25}`).TotalAmount()
	assert.True(t, ok)
	assert.True(t, total.Equal(decimal.RequireFromString("7.25")))

	_, ok = mustParse(t, `{"Total Amount":null}`).TotalAmount()
	assert.False(t, ok)

	_, ok = mustParse(t, `{"Total Amount":"n/a"}`).TotalAmount()
	assert.False(t, ok)
}

func TestReceiptData_StringOr(t *testing.T) {
	data := mustParse(t, `{"Merchant Name":null,"Transaction Date":"2024-01-01","Tax":1.5}`)
	assert.Equal(t, "N/A", data.StringOr(KeyMerchantName, "N/A"))
	assert.Equal(t, "2024-01-01", data.StringOr(KeyTransactionDate, "N/A"))
	assert.Equal(t, "1.5", data.StringOr(KeyTax, ""))
	assert.True(t, data.Has(KeyMerchantName))
	assert.False(t, data.Has(KeyItems))
}

func TestReceiptData_OptionalText(t *testing.T) {
	data := mustParse(t, `{"Merchant Name":null,"Transaction Date":"2024-01-01","Tax":1.5}`)
	assert.Nil(t, data.OptionalText(KeyMerchantName, "N/A"))
	require.NotNil(t, data.OptionalText(KeyTransactionDate, "N/A"))
	assert.Equal(t, "2024-01-01", *data.OptionalText(KeyTransactionDate, "N/A"))
	assert.Equal(t, "1.5", *data.OptionalText(KeyTax, ""))
	assert.Equal(t, "N/A", *data.OptionalText(KeyCategory, "N/A"))
}

func TestReceipt_CategoryOrDefault(t *testing.T) {
	assert.Equal(t, DefaultCategory, (&Receipt{}).CategoryOrDefault())
	assert.Equal(t, DefaultCategory, (&Receipt{Category: "  "}).CategoryOrDefault())
	assert.Equal(t, "Groceries", (&Receipt{Category: "Groceries"}).CategoryOrDefault())
}

func TestReceipt_JSONShape(t *testing.T) {
	r := Receipt{
		ID:         7,
		UploadedAt: time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC),
		Image:      "receipts/abc.jpg",
		Data:       ReceiptData{"Total Amount": 10.0},
		Category:   "Shopping",
	}
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(7), decoded["id"])
	assert.Equal(t, "2024-05-03T10:00:00Z", decoded["uploaded_at"])
	assert.Equal(t, "receipts/abc.jpg", decoded["image"])
	assert.Equal(t, "Shopping", decoded["category"])
	assert.Equal(t, map[string]any{"Total Amount": 10.0}, decoded["json_data"])
}

func TestMonthlyBudget_JSON(t *testing.T) {
	b := MonthlyBudget{Year: 2024, Month: time.June, Limit: decimal.RequireFromString("1200.5")}
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"year":2024,"month":6,"limit":"1200.50"}`, string(raw))

	var back MonthlyBudget
	require.NoError(t, json.Unmarshal([]byte(`{"year":2024,"month":6,"limit":1500}`), &back))
	assert.Equal(t, time.June, back.Month)
	assert.Equal(t, "1500.00", FormatAmount(back.Limit))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 99.999 ")
	require.NoError(t, err)
	assert.Equal(t, "100.00", FormatAmount(d))

	_, err = ParseAmount("lots")
	assert.Error(t, err)
}
