package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type CheckoutService interface {
	Begin(ctx context.Context, req d.BeginRequest) (*d.BeginResponse, error)
	Complete(ctx context.Context, req d.CompleteRequest) (*d.CompleteResponse, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	currency money.Currency
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutService, currency money.Currency, timeout time.Duration, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		currency: currency,
		timeout:  timeout,
		logger:   logger,
	}
}

type BeginCheckoutRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type TotalsDTO struct {
	Subtotal       string `json:"subtotal"`
	ShippingCharge string `json:"shipping_charge"`
	GrandTotal     string `json:"grand_total"`
	Currency       string `json:"currency"`
}

type BeginCheckoutResponseDTO struct {
	CheckoutID   string    `json:"checkout_id"`
	CheckoutKey  string    `json:"checkout_key"`
	Status       string    `json:"status"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Totals       TotalsDTO `json:"totals"`
	OrderID      string    `json:"order_id,omitempty"`
}

type ShippingDTO struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

type CompleteCheckoutRequestDTO struct {
	ConfirmationToken string      `json:"confirmation_token"`
	Shipping          ShippingDTO `json:"shipping"`
	Email             string      `json:"email"`
}

type CompleteCheckoutResponseDTO struct {
	Order     OrderResponseDTO `json:"order"`
	Status    string           `json:"status"`
	Duplicate bool             `json:"duplicate"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req BeginCheckoutRequestDTO
	if !decodeJSON(w, r, beginCheckoutSchema, &req) {
		return
	}
	method := d.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = d.PaymentMethodCard
	}

	resp, err := h.checkout.Begin(ctx, d.BeginRequest{UserID: actor.UserID, PaymentMethod: method})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	dto := BeginCheckoutResponseDTO{
		CheckoutID:   resp.CheckoutID.String(),
		CheckoutKey:  resp.CheckoutKey,
		Status:       string(resp.Status),
		ClientSecret: resp.ClientSecret,
		Totals:       toTotalsDTO(resp.Totals, h.currency),
	}
	if resp.OrderID != nil {
		dto.OrderID = resp.OrderID.String()
	}
	respondJSON(w, http.StatusCreated, dto)
}

// POST /api/v1/checkout/{checkout_key}/complete
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CompleteCheckoutRequestDTO
	if !decodeJSON(w, r, completeCheckoutSchema, &req) {
		return
	}

	// the verified token claim wins over whatever the client sends
	email := actor.Email
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}

	resp, err := h.checkout.Complete(ctx, d.CompleteRequest{
		UserID:            actor.UserID,
		CheckoutKey:       chi.URLParam(r, "checkout_key"),
		ConfirmationToken: req.ConfirmationToken,
		Shipping: d.Shipping{
			Name:       req.Shipping.Name,
			Address:    req.Shipping.Address,
			PostalCode: req.Shipping.PostalCode,
			Phone:      req.Shipping.Phone,
		},
		Email: email,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, CompleteCheckoutResponseDTO{
		Order:     toOrderDTO(resp.Order),
		Status:    string(resp.Status),
		Duplicate: resp.Duplicate,
	})
}

func toTotalsDTO(t d.Totals, fallback money.Currency) TotalsDTO {
	cur := currencyOf(t.Currency, fallback)
	return TotalsDTO{
		Subtotal:       t.Subtotal.Major(cur),
		ShippingCharge: t.ShippingCharge.Major(cur),
		GrandTotal:     t.GrandTotal.Major(cur),
		Currency:       cur.Code,
	}
}

func currencyOf(code string, fallback money.Currency) money.Currency {
	if cur, err := money.LookupCurrency(code); err == nil {
		return cur
	}
	return fallback
}
