package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle             CheckoutStatus = "idle"
	CheckoutStatusAwaitingPayment  CheckoutStatus = "awaiting_payment"
	// CheckoutStatusPaymentPending means the gateway could not say whether the buyer paid.
	// The attempt is verified again until the gateway gives a final answer.
	CheckoutStatusPaymentPending   CheckoutStatus = "payment_pending"
	CheckoutStatusPaymentConfirmed CheckoutStatus = "payment_confirmed"
	CheckoutStatusOrderPersisted   CheckoutStatus = "order_persisted"
	CheckoutStatusCartCleared      CheckoutStatus = "cart_cleared"
	CheckoutStatusFailed           CheckoutStatus = "failed"
)

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:             {CheckoutStatusAwaitingPayment, CheckoutStatusFailed},
	CheckoutStatusAwaitingPayment:  {CheckoutStatusAwaitingPayment, CheckoutStatusPaymentPending, CheckoutStatusPaymentConfirmed, CheckoutStatusFailed},
	CheckoutStatusPaymentPending:   {CheckoutStatusPaymentPending, CheckoutStatusPaymentConfirmed, CheckoutStatusFailed},
	CheckoutStatusPaymentConfirmed: {CheckoutStatusOrderPersisted, CheckoutStatusFailed},
	CheckoutStatusOrderPersisted:   {CheckoutStatusCartCleared},
	CheckoutStatusFailed:           {CheckoutStatusAwaitingPayment},
}

// CanTransitionTo reports whether a checkout attempt may move from one status to another.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCartCleared
}

// HasOrder is true once the order exists; from here on the attempt cannot fail.
func (s CheckoutStatus) HasOrder() bool {
	return s == CheckoutStatusOrderPersisted || s == CheckoutStatusCartCleared
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
