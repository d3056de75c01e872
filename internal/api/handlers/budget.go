package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	"github.com/rs/zerolog"
)

// BudgetService reads and writes monthly budgets.
type BudgetService interface {
	Periods
	GetBudget(ctx context.Context, year int, month time.Month) (*domain.MonthlyBudget, error)
	SetBudget(ctx context.Context, year int, month time.Month, limit string) (*domain.MonthlyBudget, bool, error)
}

// BudgetHandler handles GET and POST /api/budget/.
type BudgetHandler struct {
	svc BudgetService
	log zerolog.Logger
}

// NewBudgetHandler creates a new budget handler.
func NewBudgetHandler(svc BudgetService, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{svc: svc, log: log}
}

// GetBudget handles GET /api/budget/
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodFromQuery(r.URL.Query(), h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidPeriod)
		return
	}

	budget, err := h.svc.GetBudget(r.Context(), year, month)
	if err != nil {
		if errors.Is(err, expenses.ErrInvalidPeriod) {
			middleware.WriteError(w, http.StatusBadRequest, msgPeriodOutOfRange)
			return
		}
		h.log.Error().Err(err).Msg("Failed to get budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, budget)
}

// SetBudget handles POST /api/budget/. Responds 201 when the period had no
// budget and 200 when an existing one was replaced.
func (h *BudgetHandler) SetBudget(w http.ResponseWriter, r *http.Request) {
	rawYear, rawMonth, limit, err := readBudgetRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	year, month, err := resolvePeriod(rawYear, rawMonth, h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidPeriod)
		return
	}

	budget, created, err := h.svc.SetBudget(r.Context(), year, month, limit)
	switch {
	case err == nil:
	case errors.Is(err, expenses.ErrLimitRequired):
		middleware.WriteError(w, http.StatusBadRequest, "Limit is required.")
		return
	case errors.Is(err, expenses.ErrInvalidLimit):
		middleware.WriteError(w, http.StatusBadRequest, "Limit must be a positive amount.")
		return
	case errors.Is(err, expenses.ErrInvalidPeriod):
		middleware.WriteError(w, http.StatusBadRequest, msgPeriodOutOfRange)
		return
	default:
		h.log.Error().Err(err).Msg("Failed to save budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save budget")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, budget)
}

// readBudgetRequest accepts a JSON body or form fields. Year, month and limit
// may be sent as JSON strings or numbers.
func readBudgetRequest(r *http.Request) (year, month, limit string, err error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return "", "", "", err
		}
		return r.PostFormValue("year"), r.PostFormValue("month"), r.PostFormValue("limit"), nil
	}

	var req struct {
		Year  json.RawMessage `json:"year"`
		Month json.RawMessage `json:"month"`
		Limit json.RawMessage `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", "", err
	}
	if year, err = scalarText(req.Year); err != nil {
		return "", "", "", err
	}
	if month, err = scalarText(req.Month); err != nil {
		return "", "", "", err
	}
	if limit, err = scalarText(req.Limit); err != nil {
		return "", "", "", err
	}
	return year, month, limit, nil
}
