package payment

import (
	"context"
	"errors"

	"github.com/mtalha0777/arfurniture/internal/money"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidToken       = errors.New("unknown payment confirmation token")
	ErrRejected           = errors.New("payment request rejected")
)

const StatusSucceeded = "succeeded"

// Intent statuses that are not a final answer yet.
var pendingStatuses = map[string]bool{
	"processing":            true,
	"requires_action":       true,
	"requires_confirmation": true,
	"requires_capture":      true,
}

// Inconclusive reports whether a Verify error says nothing about the payment itself:
// the buyer may or may not have paid.
func Inconclusive(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

type IntentRequest struct {
	Amount   money.Amount
	Currency string
	// IdempotencyKey makes repeated requests for the same checkout return the same intent.
	IdempotencyKey string
	UserID         string
}

type Intent struct {
	ID           string
	ClientSecret string
	Amount       money.Amount
	Currency     string
	Status       string
}

// Confirmation is the gateway's view of an intent after the client confirmed it.
type Confirmation struct {
	PaymentRef    string
	IntentID      string
	Status        string
	Amount        money.Amount
	Currency      string
	FailureReason string
}

func (c *Confirmation) Succeeded() bool {
	return c != nil && c.Status == StatusSucceeded
}

// Pending is true while the gateway is still settling the payment.
func (c *Confirmation) Pending() bool {
	return c != nil && pendingStatuses[c.Status]
}

// Gateway is the external payment provider. Amounts are always minor units.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// Verify resolves a client confirmation token to the intent's current state.
	Verify(ctx context.Context, token string) (*Confirmation, error)
}
