package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	"github.com/rs/zerolog"
)

// ReportService produces the expense report and the monthly tracker.
type ReportService interface {
	Periods
	Report(ctx context.Context, startDate, endDate string) (*expenses.ExpenseReport, error)
	Track(ctx context.Context, year int, month time.Month) (*expenses.TrackerSummary, error)
}

// ReportsHandler handles the read-only spending views.
type ReportsHandler struct {
	svc ReportService
	log zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc ReportService, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, log: log}
}

// ExpenseReport handles GET /api/expense-report/
func (h *ReportsHandler) ExpenseReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	report, err := h.svc.Report(r.Context(), q.Get("start_date"), q.Get("end_date"))
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, report)
	case errors.Is(err, expenses.ErrInvalidDate):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
	case errors.Is(err, expenses.ErrNoReceipts):
		middleware.WriteError(w, http.StatusNotFound, "No receipts found for the selected criteria.")
	case errors.Is(err, expenses.ErrNoValidItems):
		middleware.WriteError(w, http.StatusNotFound, "Could not find any valid items in the selected receipts.")
	default:
		h.log.Error().Err(err).Msg("Failed to build expense report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build expense report")
	}
}

// Tracker handles GET /api/tracker/
func (h *ReportsHandler) Tracker(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodFromQuery(r.URL.Query(), h.svc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidPeriod)
		return
	}

	summary, err := h.svc.Track(r.Context(), year, month)
	if err != nil {
		if errors.Is(err, expenses.ErrInvalidPeriod) {
			middleware.WriteError(w, http.StatusBadRequest, msgPeriodOutOfRange)
			return
		}
		h.log.Error().Err(err).Int("year", year).Int("month", int(month)).Msg("Failed to build tracker")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build tracker")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}
