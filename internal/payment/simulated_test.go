package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOutcome struct {
	ok     bool
	reason string
	calls  int
}

func (f *fixedOutcome) Outcome() (bool, string) {
	f.calls++
	return f.ok, f.reason
}

func TestCalcOutcome(t *testing.T) {
	tests := []struct {
		name        string
		roll        int
		failPercent int
		wantOK      bool
	}{
		{name: "never fails", roll: 0, failPercent: 0, wantOK: true},
		{name: "above threshold", roll: 10, failPercent: 10, wantOK: true},
		{name: "below threshold", roll: 9, failPercent: 10, wantOK: false},
		{name: "always fails", roll: 99, failPercent: 100, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := calcOutcome(tt.roll, tt.failPercent)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestSimulatedGateway_IdempotentIntent(t *testing.T) {
	g := NewSimulatedGateway(AlwaysSucceed{})
	ctx := context.Background()

	first, err := g.CreateIntent(ctx, IntentRequest{Amount: 1700, Currency: "INR", IdempotencyKey: "k"})
	require.NoError(t, err)
	second, err := g.CreateIntent(ctx, IntentRequest{Amount: 1700, Currency: "INR", IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := g.CreateIntent(ctx, IntentRequest{Amount: 1700, Currency: "INR", IdempotencyKey: "k2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSimulatedGateway_SuccessIsFinal(t *testing.T) {
	outcome := &fixedOutcome{ok: false, reason: "card_declined"}
	g := NewSimulatedGateway(outcome)
	ctx := context.Background()

	intent, err := g.CreateIntent(ctx, IntentRequest{Amount: 1700, Currency: "INR", IdempotencyKey: "k"})
	require.NoError(t, err)

	c, err := g.Verify(ctx, intent.ID)
	require.NoError(t, err)
	assert.False(t, c.Succeeded())
	assert.Equal(t, "card_declined", c.FailureReason)

	// the buyer confirms again with another card
	outcome.ok = true
	c, err = g.Verify(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, c.Succeeded())
	assert.EqualValues(t, 1700, c.Amount)

	outcome.ok = false
	c, err = g.Verify(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, c.Succeeded())
	assert.Equal(t, 2, outcome.calls)
}

func TestSimulatedGateway_Errors(t *testing.T) {
	g := NewSimulatedGateway(AlwaysSucceed{})

	_, err := g.Verify(context.Background(), "pi_unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "INR"})
	assert.ErrorIs(t, err, ErrRejected)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.CreateIntent(ctx, IntentRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, context.Canceled)
}
