package domain

import (
	"github.com/google/uuid"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type Totals struct {
	Subtotal       money.Amount `json:"subtotal"`
	ShippingCharge money.Amount `json:"shipping_charge"`
	GrandTotal     money.Amount `json:"grand_total"`
	Currency       string       `json:"currency"`
}

type BeginRequest struct {
	UserID        string
	PaymentMethod PaymentMethod
}

type BeginResponse struct {
	CheckoutID   uuid.UUID
	CheckoutKey  string
	ClientSecret string
	Status       CheckoutStatus
	Totals       Totals
	OrderID      *uuid.UUID
}

type CompleteRequest struct {
	UserID            string
	CheckoutKey       string
	ConfirmationToken string
	Shipping          Shipping
	Email             string
}

type CompleteResponse struct {
	Order  *Order
	Status CheckoutStatus
	// Duplicate is set when the order already existed for this checkout.
	Duplicate bool
}
