package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matrixise/wallet-valuator/internal/portfolio"
)

// Error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type handlers struct {
	valuer Valuer
	quoter Quoter
	logger *slog.Logger
}

// handleValuations handles GET /v1/valuations
func (h *handlers) handleValuations(w http.ResponseWriter, r *http.Request) {
	report, err := h.valuer.Revalue(r.Context())
	if err != nil {
		if errors.Is(err, portfolio.ErrNoHoldings) {
			h.respondError(w, http.StatusNotFound, ErrCodeNotFound, "no holdings to value")
			return
		}
		h.logger.Error("Valuation failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "valuation failed")
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// handleQuote handles GET /v1/quote?from=ETH&to=USDC&amount=10. When a price
// is still loading at the deadline the partial estimate is sent with 504.
func (h *handlers) handleQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	est, err := h.quoter.Quote(r.Context(), query.Get("from"), query.Get("to"), query.Get("amount"))
	if err != nil {
		h.logger.Warn("Quote incomplete", "error", err)
		h.respondJSON(w, http.StatusGatewayTimeout, est)
		return
	}
	h.respondJSON(w, http.StatusOK, est)
}

func (h *handlers) respondError(w http.ResponseWriter, statusCode int, code, message string) {
	h.respondJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func (h *handlers) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
