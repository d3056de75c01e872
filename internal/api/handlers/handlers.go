// Package handlers implements the JSON endpoints of the receipt API.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Messages returned to API clients.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgInvalidBody      = "Invalid request body"
	msgInvalidPeriod    = "Year and month must be integers."
	msgPeriodOutOfRange = "Invalid year or month."
)

var errNotJSONScalar = errors.New("expected a string or a number")

// Periods supplies the period used when a request omits year or month.
type Periods interface {
	CurrentPeriod() (int, time.Month)
}

// HealthHandler reports liveness.
type HealthHandler struct {
	log zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(log zerolog.Logger) *HealthHandler {
	return &HealthHandler{log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// MethodNotAllowed writes the standard 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

// periodFromQuery reads year and month query parameters, defaulting each to
// the current period.
func periodFromQuery(q url.Values, periods Periods) (int, time.Month, error) {
	return resolvePeriod(q.Get("year"), q.Get("month"), periods)
}

func resolvePeriod(rawYear, rawMonth string, periods Periods) (int, time.Month, error) {
	year, month := periods.CurrentPeriod()

	if s := strings.TrimSpace(rawYear); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("year %q: %w", s, err)
		}
		year = y
	}
	if s := strings.TrimSpace(rawMonth); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("month %q: %w", s, err)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// scalarText renders a JSON string or number as text. Absent and null values
// yield "".
func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", errNotJSONScalar
		}
		return n.String(), nil
	}
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
