package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/mtalha0777/arfurniture/internal/money"
)

const EventOrderPlaced = "order.placed"

// OrderPlacedEvent is published once per persisted order and drives the confirmation email.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID    `json:"order_id"`
	CheckoutID     uuid.UUID    `json:"checkout_id"`
	UserID         string       `json:"user_id"`
	Email          string       `json:"email"`
	Items          []OrderItem  `json:"items"`
	Subtotal       money.Amount `json:"subtotal"`
	ShippingCharge money.Amount `json:"shipping_charge"`
	GrandTotal     money.Amount `json:"grand_total"`
	Currency       string       `json:"currency"`
	CreatedAt      time.Time    `json:"created_at"`
}

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:        o.ID,
		CheckoutID:     o.CheckoutID,
		UserID:         o.UserID,
		Email:          o.Email,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		ShippingCharge: o.ShippingCharge,
		GrandTotal:     o.GrandTotal,
		Currency:       o.Currency,
		CreatedAt:      o.CreatedAt,
	}
}
