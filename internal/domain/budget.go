package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyBudget is the spending limit for one calendar month. (Year, Month) is unique.
type MonthlyBudget struct {
	Year  int
	Month time.Month
	Limit decimal.Decimal
}

type monthlyBudgetJSON struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Limit string `json:"limit"`
}

// MarshalJSON renders the limit as a fixed two-decimal string, e.g. "1200.50".
func (b MonthlyBudget) MarshalJSON() ([]byte, error) {
	return json.Marshal(monthlyBudgetJSON{
		Year:  b.Year,
		Month: int(b.Month),
		Limit: FormatAmount(b.Limit),
	})
}

// UnmarshalJSON accepts the limit either as a string or as a number.
func (b *MonthlyBudget) UnmarshalJSON(data []byte) error {
	var raw struct {
		Year  int             `json:"year"`
		Month int             `json:"month"`
		Limit json.RawMessage `json:"limit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	limit, err := ParseAmount(strings.Trim(string(raw.Limit), `"`))
	if err != nil {
		return fmt.Errorf("MonthlyBudget: %w", err)
	}
	b.Year, b.Month, b.Limit = raw.Year, time.Month(raw.Month), limit
	return nil
}

// FormatAmount renders a money amount with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseAmount parses a money amount and rounds it to two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d.Round(2), nil
}
