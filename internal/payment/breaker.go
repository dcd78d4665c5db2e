package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerGateway stops calling a failing gateway for a while instead of making every
// checkout wait for its timeout.
type BreakerGateway struct {
	next    Gateway
	intents *gobreaker.CircuitBreaker[*Intent]
	verify  *gobreaker.CircuitBreaker[*Confirmation]
}

func NewBreakerGateway(next Gateway, logger *slog.Logger) *BreakerGateway {
	return &BreakerGateway{
		next:    next,
		intents: gobreaker.NewCircuitBreaker[*Intent](breakerSettings("payment-intents", logger)),
		verify:  gobreaker.NewCircuitBreaker[*Confirmation](breakerSettings("payment-verify", logger)),
	}
}

func breakerSettings(name string, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Rejections and unknown tokens are answers from a healthy gateway.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidToken) || errors.Is(err, context.Canceled)
		},
	}
}

func (b *BreakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	intent, err := b.intents.Execute(func() (*Intent, error) {
		return b.next.CreateIntent(ctx, req)
	})
	return intent, breakerError(err)
}

func (b *BreakerGateway) Verify(ctx context.Context, token string) (*Confirmation, error) {
	c, err := b.verify.Execute(func() (*Confirmation, error) {
		return b.next.Verify(ctx, token)
	})
	return c, breakerError(err)
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrGatewayUnavailable, err)
	}
	return err
}
