// Package api assembles the HTTP surface of the receipt service.
package api

import (
	"net/http"

	"github.com/dvloznov/receipt-reader/internal/api/handlers"
	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	"github.com/dvloznov/receipt-reader/internal/metrics"
	"github.com/rs/zerolog"
)

// Options configures the router.
type Options struct {
	MaxUploadBytes int64
	AllowOrigins   []string
}

// NewHandler builds the routes over svc and wraps them in the middleware
// chain.
func NewHandler(svc *expenses.Service, opts Options, log zerolog.Logger) http.Handler {
	return Wrap(NewRouter(svc, opts, log), opts, log)
}

// Wrap applies the middleware chain, outermost first: Recovery, RequestID,
// Logger, CORS, Metrics.
func Wrap(mux http.Handler, opts Options, log zerolog.Logger) http.Handler {
	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(opts.AllowOrigins)(
					middleware.Metrics(mux),
				),
			),
		),
	)
}

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(svc *expenses.Service, opts Options, log zerolog.Logger) *http.ServeMux {
	receiptsHandler := handlers.NewReceiptsHandler(svc, opts.MaxUploadBytes, log)
	chatHandler := handlers.NewChatHandler(svc, log)
	reportsHandler := handlers.NewReportsHandler(svc, log)
	budgetHandler := handlers.NewBudgetHandler(svc, log)
	healthHandler := handlers.NewHealthHandler(log)

	mux := http.NewServeMux()

	// Receipts
	mux.HandleFunc("/api/process/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.ProcessReceipt(w, r)
		} else {
			handlers.MethodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/receipts/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			receiptsHandler.ListReceipts(w, r)
		} else {
			handlers.MethodNotAllowed(w)
		}
	})

	// Advisor
	mux.HandleFunc("/api/chatbot/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			chatHandler.Chat(w, r)
		} else {
			handlers.MethodNotAllowed(w)
		}
	})

	// Reports
	mux.HandleFunc("/api/expense-report/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.ExpenseReport(w, r)
		} else {
			handlers.MethodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/tracker/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.Tracker(w, r)
		} else {
			handlers.MethodNotAllowed(w)
		}
	})

	// Budgets
	mux.HandleFunc("/api/budget/{$}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			budgetHandler.GetBudget(w, r)
		case http.MethodPost:
			budgetHandler.SetBudget(w, r)
		default:
			handlers.MethodNotAllowed(w)
		}
	})

	mux.HandleFunc("/health", healthHandler.Health)
	mux.Handle("/metrics", metrics.Handler())

	return mux
}
