package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

type CartStore interface {
	Snapshot(ctx context.Context, userID string) (*d.CartSnapshot, error)
	Clear(ctx context.Context, userID string) (int, error)
	RemoveLine(ctx context.Context, userID, productID string) error
}

type SessionStore interface {
	CreateCheckoutSession(ctx context.Context, s *r.CheckoutSession) error
	GetCheckoutSessionByIdempotencyKey(ctx context.Context, key string) (*r.CheckoutSession, error)
	UpdateCheckoutSessionStatus(ctx context.Context, id uuid.UUID, status d.CheckoutStatus, reason string) error
	RestartCheckoutSession(ctx context.Context, id uuid.UUID, method d.PaymentMethod, intentID string) error
	SetPaymentConfirmed(ctx context.Context, id uuid.UUID, paymentRef string, shipping d.Shipping, email string) error
	SetPaymentPending(ctx context.Context, id uuid.UUID, shipping d.Shipping, email, reason string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *d.Order, event *r.OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error)
	GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*d.Order, error)
	GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*d.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error)
	ListOrdersByShopID(ctx context.Context, shopID string) ([]*d.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]*d.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to d.OrderStatus) error
}

type ReconciliationStore interface {
	RecordReconciliation(ctx context.Context, e *r.ReconciliationEvent) error
	ResolveReconciliations(ctx context.Context, checkoutID uuid.UUID) error
}

// Notifier is woken after an order is saved so its outbox event goes out without
// waiting for the next poll.
type Notifier interface {
	Wake()
}

type CheckoutService struct {
	sessions SessionStore
	cart     *CartHandler
	payment  *PaymentHandler
	orders   *OrderWriter
	recon    *ReconciliationRecorder
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewCheckoutService(
	sessions SessionStore,
	cart *CartHandler,
	payment *PaymentHandler,
	orders *OrderWriter,
	recon *ReconciliationRecorder,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		cart:     cart,
		payment:  payment,
		orders:   orders,
		recon:    recon,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}
