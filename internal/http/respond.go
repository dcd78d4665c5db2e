package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mtalha0777/arfurniture/internal/cart"
	"github.com/mtalha0777/arfurniture/internal/catalog"
	"github.com/mtalha0777/arfurniture/internal/money"
	r "github.com/mtalha0777/arfurniture/internal/repository"
	"github.com/mtalha0777/arfurniture/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain errors to HTTP statuses. Anything unknown is a 500 and
// its details stay in the log.
func handleServiceError(w http.ResponseWriter, req *http.Request, logger *slog.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, service.ErrEmptyCart):
		status, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, service.ErrInvalidShipping):
		status, code = http.StatusBadRequest, "invalid_shipping"
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		status, code = http.StatusBadRequest, "invalid_payment_method"
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, money.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, service.ErrInvalidTotal):
		status, code = http.StatusUnprocessableEntity, "invalid_total"
	case errors.Is(err, catalog.ErrProductUnavailable):
		status, code = http.StatusUnprocessableEntity, "product_unavailable"
	case errors.Is(err, service.ErrPaymentPending):
		// the outcome is unknown; the client retries completion with the same checkout key
		status, code = http.StatusServiceUnavailable, "payment_pending"
	case errors.Is(err, service.ErrPaymentFailed):
		status, code = http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, service.ErrOrderPersistFailed):
		// the payment went through; the client retries with the same checkout key
		status, code = http.StatusServiceUnavailable, "order_persist_failed"
	case errors.Is(err, service.ErrCheckoutNotFound), errors.Is(err, r.ErrOrderNotFound),
		errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, cart.ErrDuplicateLine):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, service.ErrIllegalTransition), errors.Is(err, r.ErrStatusConflict):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, cart.ErrStorageUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		logger.ErrorContext(req.Context(), "request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	logger.InfoContext(req.Context(), "request rejected", "path", req.URL.Path, "code", code, "error", err)
	respondError(w, status, code, err.Error())
}
