package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/payment"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

// Begin snapshots the cart, prices it and opens a payment intent for it. Calling it again
// for the same unchanged cart returns the same checkout and the same intent.
func (s *CheckoutService) Begin(ctx context.Context, req d.BeginRequest) (resp *d.BeginResponse, err error) {
	defer func() { s.metrics.RecordCheckout("begin", err) }()

	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	snapshot, err := s.cart.snapshot(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	key := checkoutKey(req.UserID, snapshot)
	existing, err := s.sessions.GetCheckoutSessionByIdempotencyKey(ctx, key)
	if err != nil && !errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		return s.beginExisting(ctx, existing, req.PaymentMethod)
	}

	totals, err := s.orders.Quote(snapshot.Lines)
	if err != nil {
		return nil, err
	}
	session := &r.CheckoutSession{
		ID:             uuid.New(),
		UserID:         req.UserID,
		IdempotencyKey: key,
		CartID:         snapshot.CartID,
		CartSnapshot:   *snapshot,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       totals.Subtotal,
		ShippingCharge: totals.ShippingCharge,
		GrandTotal:     totals.GrandTotal,
		Currency:       totals.Currency,
	}

	intent, err := s.requestIntent(ctx, session)
	if err != nil {
		return nil, err
	}
	if intent != nil {
		session.PaymentIntentID = intent.ID
	}

	err = s.sessions.CreateCheckoutSession(ctx, session)
	if errors.Is(err, r.ErrDuplicateIdempotencyKey) {
		// a concurrent Begin for the same cart stored its session first
		winner, getErr := s.sessions.GetCheckoutSessionByIdempotencyKey(ctx, key)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load concurrent checkout: %w", getErr)
		}
		return s.beginExisting(ctx, winner, req.PaymentMethod)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout started",
		"checkout_id", session.ID,
		"user_id", session.UserID,
		"payment_method", session.PaymentMethod,
		"grand_total", session.GrandTotal)
	return beginResponse(session, intent), nil
}

func (s *CheckoutService) beginExisting(ctx context.Context, session *r.CheckoutSession, method d.PaymentMethod) (*d.BeginResponse, error) {
	s.logger.InfoContext(ctx, "duplicate checkout request",
		"checkout_id", session.ID,
		"status", session.Status)

	// a pending payment may still go through, so its intent must not be replaced
	if session.OrderID != nil || session.Status.HasOrder() ||
		session.Status == d.CheckoutStatusPaymentConfirmed || session.Status == d.CheckoutStatusPaymentPending {
		return beginResponse(session, nil), nil
	}

	previousMethod := session.PaymentMethod
	session.PaymentMethod = method
	intent, err := s.requestIntent(ctx, session)
	if err != nil {
		return nil, err
	}

	intentID := ""
	if intent != nil {
		intentID = intent.ID
	}
	if session.Status != d.CheckoutStatusAwaitingPayment || previousMethod != method || intentID != session.PaymentIntentID {
		if !d.CanTransitionTo(session.Status, d.CheckoutStatusAwaitingPayment) {
			return nil, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, session.Status, d.CheckoutStatusAwaitingPayment)
		}
		if err := s.sessions.RestartCheckoutSession(ctx, session.ID, method, intentID); err != nil {
			return nil, fmt.Errorf("failed to restart checkout session: %w", err)
		}
		session.Status = d.CheckoutStatusAwaitingPayment
		session.PaymentIntentID = intentID
		session.FailureReason = ""
	}
	return beginResponse(session, intent), nil
}

// requestIntent asks the gateway for an intent keyed by the checkout key, so a repeated
// request for the same checkout never opens a second charge. Cash on delivery has none.
func (s *CheckoutService) requestIntent(ctx context.Context, session *r.CheckoutSession) (*payment.Intent, error) {
	if session.PaymentMethod == d.PaymentMethodCOD {
		return nil, nil
	}

	intent, err := s.payment.createIntent(ctx, payment.IntentRequest{
		Amount:         session.GrandTotal,
		Currency:       session.Currency,
		IdempotencyKey: session.IdempotencyKey,
		UserID:         session.UserID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment intent failed", "checkout_key", session.IdempotencyKey, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	return intent, nil
}

func beginResponse(session *r.CheckoutSession, intent *payment.Intent) *d.BeginResponse {
	resp := &d.BeginResponse{
		CheckoutID:  session.ID,
		CheckoutKey: session.IdempotencyKey,
		Status:      session.Status,
		Totals:      session.Totals(),
		OrderID:     session.OrderID,
	}
	if intent != nil {
		resp.ClientSecret = intent.ClientSecret
	}
	return resp
}
