package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// OutcomeSource decides whether a simulated payment succeeds.
type OutcomeSource interface {
	Outcome() (succeeded bool, reason string)
}

// RandomOutcome fails roughly FailPercent out of every hundred payments.
type RandomOutcome struct {
	FailPercent int
}

func (r RandomOutcome) Outcome() (bool, string) {
	return calcOutcome(rand.Intn(100), r.FailPercent)
}

func calcOutcome(roll, failPercent int) (bool, string) {
	if roll >= failPercent {
		return true, ""
	}
	reasons := []string{"card_declined", "insufficient_funds", "expired_card", "processing_error"}
	return false, reasons[roll%len(reasons)]
}

// AlwaysSucceed is an OutcomeSource for local runs.
type AlwaysSucceed struct{}

func (AlwaysSucceed) Outcome() (bool, string) { return true, "" }

// SimulatedGateway is an in-memory gateway. Intents are de-duplicated by idempotency key.
// A succeeded intent stays succeeded; a declined one may be confirmed again.
type SimulatedGateway struct {
	mu      sync.Mutex
	outcome OutcomeSource
	byKey   map[string]*Intent
	byID    map[string]*Intent
	settled map[string]*Confirmation
}

func NewSimulatedGateway(outcome OutcomeSource) *SimulatedGateway {
	return &SimulatedGateway{
		outcome: outcome,
		byKey:   make(map[string]*Intent),
		byID:    make(map[string]*Intent),
		settled: make(map[string]*Confirmation),
	}
}

func (g *SimulatedGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if existing, ok := g.byKey[req.IdempotencyKey]; ok {
			cp := *existing
			return &cp, nil
		}
	}

	id := "pi_sim_" + uuid.NewString()
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
	}
	g.byID[id] = intent
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = intent
	}

	cp := *intent
	return &cp, nil
}

func (g *SimulatedGateway) Verify(ctx context.Context, token string) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.byID[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	if c, ok := g.settled[token]; ok {
		cp := *c
		return &cp, nil
	}

	c := &Confirmation{
		PaymentRef: intent.ID,
		IntentID:   intent.ID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
	}
	if ok, reason := g.outcome.Outcome(); ok {
		c.Status = StatusSucceeded
		g.settled[token] = c
	} else {
		c.Status = "requires_payment_method"
		c.FailureReason = reason
	}
	intent.Status = c.Status

	cp := *c
	return &cp, nil
}
