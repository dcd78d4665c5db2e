package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type OrderService interface {
	GetOrder(ctx context.Context, actor d.Actor, id uuid.UUID) (*d.Order, error)
	ListForUser(ctx context.Context, userID string) ([]*d.Order, error)
	ListForShop(ctx context.Context, actor d.Actor, shopID string) ([]*d.Order, error)
	ListRecent(ctx context.Context, actor d.Actor) ([]*d.Order, error)
	UpdateStatus(ctx context.Context, actor d.Actor, id uuid.UUID, next d.OrderStatus) (*d.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	logger  *slog.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		logger:  logger,
	}
}

type OrderItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ShopID    string `json:"shop_id"`
}

type OrderResponseDTO struct {
	ID             string         `json:"id"`
	CheckoutID     string         `json:"checkout_id"`
	UserID         string         `json:"user_id"`
	Items          []OrderItemDTO `json:"items"`
	Shipping       ShippingDTO    `json:"shipping"`
	PaymentMethod  string         `json:"payment_method"`
	PaymentStatus  string         `json:"payment_status"`
	Subtotal       string         `json:"subtotal"`
	ShippingCharge string         `json:"shipping_charge"`
	GrandTotal     string         `json:"grand_total"`
	Currency       string         `json:"currency"`
	Status         string         `json:"status"`
	CreatedAt      string         `json:"created_at"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListForUser(ctx, actor.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrder(ctx, actor, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, updateStatusSchema, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx, actor, id, d.OrderStatus(req.Status))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// GET /api/v1/shops/{shop_id}/orders
func (h *OrdersHandler) ListShopOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListForShop(ctx, actor, chi.URLParam(r, "shop_id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

// GET /api/v1/admin/orders
func (h *OrdersHandler) ListRecentOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListRecent(ctx, actor)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func toOrderDTOs(orders []*d.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	return dtos
}

func toOrderDTO(o *d.Order) OrderResponseDTO {
	cur := currencyOf(o.Currency, money.INR)

	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.Major(cur),
			ShopID:    item.ShopID,
		})
	}

	return OrderResponseDTO{
		ID:         o.ID.String(),
		CheckoutID: o.CheckoutID.String(),
		UserID:     o.UserID,
		Items:      items,
		Shipping: ShippingDTO{
			Name:       o.Shipping.Name,
			Address:    o.Shipping.Address,
			PostalCode: o.Shipping.PostalCode,
			Phone:      o.Shipping.Phone,
		},
		PaymentMethod:  string(o.PaymentMethod),
		PaymentStatus:  o.PaymentStatus,
		Subtotal:       o.Subtotal.Major(cur),
		ShippingCharge: o.ShippingCharge.Major(cur),
		GrandTotal:     o.GrandTotal.Major(cur),
		Currency:       cur.Code,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
}
