package service

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrInvalidShipping      = errors.New("shipping details are incomplete")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrPaymentPending       = errors.New("payment outcome not known yet")
	ErrOrderPersistFailed   = errors.New("payment captured but order could not be saved")
	ErrCartClearFailed      = errors.New("order saved but cart could not be cleared")
	ErrInvalidTotal         = errors.New("order total must be positive and within range")
	ErrPersistenceFailed    = errors.New("order persistence failed")
	ErrCheckoutNotFound     = errors.New("checkout not found")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrForbidden            = errors.New("not allowed")
)
