package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCOD is the only method allowed to create an order without a gateway confirmation.
	PaymentMethodCOD PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCOD
}

const (
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusCODPending = "cod_pending"
)

// OrderItem is copied from a cart line at purchase time and never re-priced.
type OrderItem struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
	ShopID    string       `json:"shop_id"`
}

type Shipping struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// Missing returns the names of blank shipping fields.
func (s Shipping) Missing() []string {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(s.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if strings.TrimSpace(s.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}

type Order struct {
	ID             uuid.UUID
	CheckoutID     uuid.UUID
	UserID         string
	Email          string
	Items          []OrderItem
	Shipping       Shipping
	PaymentMethod  PaymentMethod
	PaymentRef     string
	PaymentStatus  string
	Subtotal       money.Amount
	ShippingCharge money.Amount
	GrandTotal     money.Amount
	Currency       string
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemsForShop returns the items sold by one shop, for seller views.
func (o *Order) ItemsForShop(shopID string) []OrderItem {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ShopID == shopID {
			items = append(items, item)
		}
	}
	return items
}
