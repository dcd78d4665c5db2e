package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
	"github.com/mtalha0777/arfurniture/internal/service"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*d.Cart, error)
	AddLine(ctx context.Context, userID, productID string) error
	RemoveLine(ctx context.Context, userID, productID string) error
	Toggle(ctx context.Context, userID, productID string) (bool, error)
}

type CartHandler struct {
	cart     CartService
	currency money.Currency
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCartHandler(cart CartService, currency money.Currency, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:     cart,
		currency: currency,
		timeout:  timeout,
		logger:   logger,
	}
}

// AddItemRequestDTO names the product only. Name, shop and price come from the catalog.
type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type CartLineDTO struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	ShopID    string    `json:"shop_id"`
	AddedAt   time.Time `json:"added_at"`
}

type CartResponseDTO struct {
	ID       string        `json:"id,omitempty"`
	Lines    []CartLineDTO `json:"lines"`
	Subtotal string        `json:"subtotal"`
	Currency string        `json:"currency"`
}

type ToggleResponseDTO struct {
	ProductID string `json:"product_id"`
	InCart    bool   `json:"in_cart"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.cart.GetCart(ctx, actor.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, addItemSchema, &req) {
		return
	}

	if err := h.cart.AddLine(ctx, actor.UserID, req.ProductID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	cart, err := h.cart.GetCart(ctx, actor.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusCreated, cart)
}

// POST /api/v1/cart/items/toggle
func (h *CartHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, addItemSchema, &req) {
		return
	}

	inCart, err := h.cart.Toggle(ctx, actor.UserID, req.ProductID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponseDTO{ProductID: req.ProductID, InCart: inCart})
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.cart.RemoveLine(ctx, actor.UserID, productID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *d.Cart) {
	dto := CartResponseDTO{
		ID:       cart.ID,
		Lines:    make([]CartLineDTO, 0, len(cart.Lines)),
		Currency: h.currency.Code,
	}
	prices := make([]money.Amount, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		prices = append(prices, l.UnitPrice)
		dto.Lines = append(dto.Lines, CartLineDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice.Major(h.currency),
			ShopID:    l.ShopID,
			AddedAt:   l.AddedAt,
		})
	}
	subtotal, err := money.Sum(prices...)
	if err != nil {
		handleServiceError(w, r, h.logger, fmt.Errorf("%w: %w", service.ErrInvalidTotal, err))
		return
	}
	dto.Subtotal = subtotal.Major(h.currency)
	respondJSON(w, status, dto)
}
