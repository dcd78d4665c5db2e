package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/mtalha0777/arfurniture/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyGateway struct {
	calls atomic.Int32
	err   error
}

func (f *flakyGateway) CreateIntent(context.Context, IntentRequest) (*Intent, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Intent{ID: "pi_1"}, nil
}

func (f *flakyGateway) Verify(context.Context, string) (*Confirmation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Confirmation{PaymentRef: "pi_1", Status: StatusSucceeded}, nil
}

func TestBreakerGateway_PassThrough(t *testing.T) {
	next := &flakyGateway{}
	g := NewBreakerGateway(next, logger.Discard())

	intent, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)

	c, err := g.Verify(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, c.Succeeded())
}

func TestBreakerGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyGateway{err: ErrGatewayUnavailable}
	g := NewBreakerGateway(next, logger.Discard())

	for i := 0; i < 5; i++ {
		_, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 100})
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	}
	assert.EqualValues(t, 5, next.calls.Load())

	_, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 100})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.EqualValues(t, 5, next.calls.Load(), "open breaker must not reach the gateway")

	// verification has its own breaker
	next.err = nil
	_, err = g.Verify(context.Background(), "pi_1")
	assert.NoError(t, err)
}

func TestBreakerGateway_RejectionsDoNotTrip(t *testing.T) {
	next := &flakyGateway{err: errors.Join(ErrRejected, errors.New("amount too small"))}
	g := NewBreakerGateway(next, logger.Discard())

	for i := 0; i < 10; i++ {
		_, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 1})
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.EqualValues(t, 10, next.calls.Load())
}
