package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

const recentOrdersLimit = 100

type PaymentResult struct {
	Method d.PaymentMethod
	Ref    string
	Status string
}

type CreateOrderInput struct {
	CheckoutID uuid.UUID
	UserID     string
	Email      string
	Lines      []d.CartLine
	Shipping   d.Shipping
	Payment    PaymentResult
}

// OrderWriter turns a cart snapshot and a confirmed payment into a persisted order.
// It also serves the order read and status paths.
type OrderWriter struct {
	repo        OrderRepository
	shippingFee money.Amount
	currency    money.Currency
	logger      *slog.Logger
}

func NewOrderWriter(repo OrderRepository, shippingFee money.Amount, currency money.Currency, logger *slog.Logger) *OrderWriter {
	return &OrderWriter{
		repo:        repo,
		shippingFee: shippingFee,
		currency:    currency,
		logger:      logger,
	}
}

// Quote prices a set of lines. Shipping is a flat fee charged only when there is
// something to ship. Totals that do not fit an Amount are ErrInvalidTotal.
func (w *OrderWriter) Quote(lines []d.CartLine) (d.Totals, error) {
	snapshot := d.CartSnapshot{Lines: lines}
	subtotal, err := snapshot.Subtotal()
	if err != nil {
		return d.Totals{}, fmt.Errorf("%w: %w", ErrInvalidTotal, err)
	}

	var shipping money.Amount
	if subtotal > 0 {
		shipping = w.shippingFee
	}
	grand, err := money.Sum(subtotal, shipping)
	if err != nil {
		return d.Totals{}, fmt.Errorf("%w: %w", ErrInvalidTotal, err)
	}

	return d.Totals{
		Subtotal:       subtotal,
		ShippingCharge: shipping,
		GrandTotal:     grand,
		Currency:       w.currency.Code,
	}, nil
}

func (w *OrderWriter) CreateOrder(ctx context.Context, in CreateOrderInput) (*d.Order, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if missing := in.Shipping.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidShipping, strings.Join(missing, ", "))
	}

	totals, err := w.Quote(in.Lines)
	if err != nil {
		return nil, err
	}
	if totals.Subtotal <= 0 {
		return nil, ErrInvalidTotal
	}

	items := make([]d.OrderItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		items = append(items, d.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice,
			ShopID:    l.ShopID,
		})
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := &d.Order{
		ID:             uuid.New(),
		CheckoutID:     in.CheckoutID,
		UserID:         in.UserID,
		Email:          in.Email,
		Items:          items,
		Shipping:       trimShipping(in.Shipping),
		PaymentMethod:  in.Payment.Method,
		PaymentRef:     in.Payment.Ref,
		PaymentStatus:  in.Payment.Status,
		Subtotal:       totals.Subtotal,
		ShippingCharge: totals.ShippingCharge,
		GrandTotal:     totals.GrandTotal,
		Currency:       totals.Currency,
		Status:         d.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	payload, err := json.Marshal(d.NewOrderPlacedEvent(order))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	event := &r.OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   d.EventOrderPlaced,
		Payload:     payload,
	}

	if err := w.repo.CreateOrder(ctx, order, event); err != nil {
		if errors.Is(err, r.ErrDuplicatePayment) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	w.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"checkout_id", order.CheckoutID,
		"user_id", order.UserID,
		"grand_total", order.GrandTotal,
		"currency", order.Currency)
	return order, nil
}

// GetOrder returns an order to its buyer, an admin, or a seller of one of its items.
// Sellers only see their own items.
func (w *OrderWriter) GetOrder(ctx context.Context, actor d.Actor, id uuid.UUID) (*d.Order, error) {
	order, err := w.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin(), order.UserID == actor.UserID:
		return order, nil
	case actor.SellsIn(order):
		return sellerView(actor, order), nil
	}
	return nil, ErrForbidden
}

func (w *OrderWriter) ListForUser(ctx context.Context, userID string) ([]*d.Order, error) {
	return w.repo.ListOrdersByUserID(ctx, userID)
}

// ListForShop returns the shop's orders with only the shop's items on them.
func (w *OrderWriter) ListForShop(ctx context.Context, actor d.Actor, shopID string) ([]*d.Order, error) {
	if !actor.IsAdmin() && !actor.OwnsShop(shopID) {
		return nil, ErrForbidden
	}

	orders, err := w.repo.ListOrdersByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	for i, o := range orders {
		cp := *o
		cp.Items = o.ItemsForShop(shopID)
		orders[i] = &cp
	}
	return orders, nil
}

func (w *OrderWriter) ListRecent(ctx context.Context, actor d.Actor) ([]*d.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return w.repo.ListRecentOrders(ctx, recentOrdersLimit)
}

// UpdateStatus moves an order along its lifecycle. Only admins and sellers of the
// order's items may do it.
func (w *OrderWriter) UpdateStatus(ctx context.Context, actor d.Actor, id uuid.UUID, next d.OrderStatus) (*d.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	order, err := w.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.SellsIn(order) {
		return nil, ErrForbidden
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, order.Status, next)
	}

	if err := w.repo.UpdateOrderStatus(ctx, id, order.Status, next); err != nil {
		return nil, err
	}

	w.logger.InfoContext(ctx, "order status updated",
		"order_id", id,
		"from", order.Status,
		"to", next,
		"actor", actor.UserID)

	order.Status = next
	order.UpdatedAt = time.Now().UTC()
	if actor.IsAdmin() {
		return order, nil
	}
	return sellerView(actor, order), nil
}

func sellerView(actor d.Actor, order *d.Order) *d.Order {
	cp := *order
	cp.Items = nil
	for _, shopID := range actor.ShopIDs {
		cp.Items = append(cp.Items, order.ItemsForShop(shopID)...)
	}
	return &cp
}

func trimShipping(s d.Shipping) d.Shipping {
	return d.Shipping{
		Name:       strings.TrimSpace(s.Name),
		Address:    strings.TrimSpace(s.Address),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Phone:      strings.TrimSpace(s.Phone),
	}
}
