package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	"github.com/rs/zerolog"
)

// ImageField is the multipart field carrying the receipt image.
const ImageField = "image"

// ReceiptService is the part of the expenses service used by ReceiptsHandler.
type ReceiptService interface {
	ProcessReceipt(ctx context.Context, filename, contentType string, image []byte) (*domain.Receipt, error)
	ListReceipts(ctx context.Context) ([]*domain.Receipt, error)
}

// ReceiptsHandler handles receipt upload and listing.
type ReceiptsHandler struct {
	svc            ReceiptService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(svc ReceiptService, maxUploadBytes int64, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// ProcessReceipt handles POST /api/process/
func (h *ReceiptsHandler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusBadRequest, "The submitted file is too large.")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "No file was submitted.")
		return
	}

	file, header, err := r.FormFile(ImageField)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file was submitted.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded image")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file.")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "The submitted file is empty.")
		return
	}

	contentType, ok := imageContentType(data, header.Header.Get("Content-Type"))
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest,
			"Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
		return
	}

	receipt, err := h.svc.ProcessReceipt(r.Context(), header.Filename, contentType, data)
	if err != nil {
		if errors.Is(err, expenses.ErrInvalidUpload) {
			middleware.WriteError(w, http.StatusBadRequest, "The submitted file is empty.")
			return
		}
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to process receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "An error occurred during processing: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, receipt)
}

// ListReceipts handles GET /api/receipts/
func (h *ReceiptsHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.svc.ListReceipts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list receipts")
		return
	}
	if receipts == nil {
		receipts = []*domain.Receipt{}
	}
	middleware.WriteJSON(w, http.StatusOK, receipts)
}

// imageContentType sniffs the upload. A declared image type is trusted only
// when sniffing is inconclusive.
func imageContentType(data []byte, declared string) (string, bool) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	if sniffed != "application/octet-stream" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType, true
	}
	return "", false
}
