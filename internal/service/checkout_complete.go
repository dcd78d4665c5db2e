package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/payment"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

// Complete verifies the buyer's payment and turns the checkout into an order. Once the
// payment is confirmed, nothing after it can take the payment back: a failed save is
// raised for reconciliation and a failed cart clear is only logged. When the gateway
// cannot tell whether the buyer paid, the checkout is left pending and verified again on
// the next call or by recovery.
func (s *CheckoutService) Complete(ctx context.Context, req d.CompleteRequest) (resp *d.CompleteResponse, err error) {
	defer func() { s.metrics.RecordCheckout("complete", err) }()

	if missing := req.Shipping.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidShipping, strings.Join(missing, ", "))
	}

	session, err := s.sessions.GetCheckoutSessionByIdempotencyKey(ctx, req.CheckoutKey)
	if errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout: %w", err)
	}
	if session.UserID != req.UserID {
		return nil, ErrCheckoutNotFound
	}

	if session.OrderID != nil {
		order, err := s.orders.repo.GetOrderByID(ctx, *session.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order: %w", err)
		}
		return &d.CompleteResponse{Order: order, Status: session.Status, Duplicate: true}, nil
	}

	var paid PaymentResult
	switch session.Status {
	case d.CheckoutStatusAwaitingPayment:
		paid, err = s.confirmPayment(ctx, session, req.ConfirmationToken, req.Shipping, req.Email)
		if err != nil {
			return nil, err
		}
		return s.settle(ctx, session, paid, req.Shipping, req.Email, false)
	case d.CheckoutStatusPaymentPending:
		// a pending attempt is always verified against its own intent
		paid, err = s.confirmPayment(ctx, session, session.PaymentIntentID, req.Shipping, req.Email)
		if err != nil {
			return nil, err
		}
		return s.settle(ctx, session, paid, req.Shipping, req.Email, true)
	case d.CheckoutStatusPaymentConfirmed:
		// the payment was confirmed on an earlier attempt whose order was not saved
		return s.settle(ctx, session, confirmedPayment(session), req.Shipping, req.Email, true)
	case d.CheckoutStatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, session.FailureReason)
	default:
		return nil, fmt.Errorf("%w: cannot complete checkout in status %s", ErrIllegalTransition, session.Status)
	}
}

// settle records the confirmed payment and saves the order. With resolve set, open
// reconciliation events for the checkout are closed once the order exists.
func (s *CheckoutService) settle(ctx context.Context, session *r.CheckoutSession, paid PaymentResult,
	shipping d.Shipping, email string, resolve bool) (*d.CompleteResponse, error) {
	if err := s.sessions.SetPaymentConfirmed(ctx, session.ID, paid.Ref, shipping, email); err != nil {
		s.logger.WarnContext(ctx, "failed to record payment confirmation", "checkout_id", session.ID, "error", err)
	}
	session.Status = d.CheckoutStatusPaymentConfirmed
	session.PaymentRef = paid.Ref
	session.Shipping = &shipping
	session.Email = email

	resp, err := s.persist(ctx, session, paid)
	if errors.Is(err, ErrOrderPersistFailed) {
		s.recon.Record(ctx, session, paid.Ref, err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if resolve {
		s.recon.Resolve(ctx, session)
	}
	return resp, nil
}

func (s *CheckoutService) confirmPayment(ctx context.Context, session *r.CheckoutSession, token string,
	shipping d.Shipping, email string) (PaymentResult, error) {
	if session.PaymentMethod == d.PaymentMethodCOD {
		return confirmedPayment(session), nil
	}

	confirmation, err := s.payment.verify(ctx, token)
	if err != nil {
		if payment.Inconclusive(err) {
			return PaymentResult{}, s.holdPayment(ctx, session, shipping, email, err)
		}
		return PaymentResult{}, s.failPayment(ctx, session, err.Error(), err)
	}
	if reason, pending := checkConfirmation(session, confirmation); reason != "" {
		if pending {
			return PaymentResult{}, s.holdPayment(ctx, session, shipping, email, errors.New(reason))
		}
		return PaymentResult{}, s.failPayment(ctx, session, reason, nil)
	}

	return PaymentResult{
		Method: d.PaymentMethodCard,
		Ref:    confirmation.PaymentRef,
		Status: confirmation.Status,
	}, nil
}

// checkConfirmation returns why the confirmation does not settle the checkout. pending is
// set when the gateway may still complete the payment.
func checkConfirmation(session *r.CheckoutSession, c *payment.Confirmation) (reason string, pending bool) {
	switch {
	case c.IntentID != session.PaymentIntentID:
		return "payment does not belong to this checkout", false
	case c.Amount != session.GrandTotal || !strings.EqualFold(c.Currency, session.Currency):
		return fmt.Sprintf("paid %d %s, expected %d %s", c.Amount, c.Currency, session.GrandTotal, session.Currency), false
	case c.Pending():
		return "payment " + c.Status, true
	case !c.Succeeded():
		if c.FailureReason != "" {
			return fmt.Sprintf("payment %s: %s", c.Status, c.FailureReason), false
		}
		return "payment " + c.Status, false
	}
	return "", false
}

// holdPayment parks the checkout in payment_pending. The first time it does so the
// unknown payment is raised for reconciliation.
func (s *CheckoutService) holdPayment(ctx context.Context, session *r.CheckoutSession, shipping d.Shipping, email string, cause error) error {
	s.logger.WarnContext(ctx, "payment outcome unknown", "checkout_id", session.ID, "status", session.Status, "error", cause)

	// the request context may be what just ran out
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.sessions.SetPaymentPending(storeCtx, session.ID, shipping, email, cause.Error()); err != nil {
		s.logger.WarnContext(ctx, "failed to mark payment pending", "checkout_id", session.ID, "error", err)
	}
	if session.Status != d.CheckoutStatusPaymentPending {
		s.recon.RecordPending(ctx, session, cause)
	}
	session.Status = d.CheckoutStatusPaymentPending
	session.Shipping = &shipping
	session.Email = email
	session.FailureReason = cause.Error()

	return fmt.Errorf("%w: %w", ErrPaymentPending, cause)
}

func (s *CheckoutService) failPayment(ctx context.Context, session *r.CheckoutSession, reason string, cause error) error {
	s.logger.WarnContext(ctx, "payment not confirmed", "checkout_id", session.ID, "reason", reason)

	if err := s.sessions.UpdateCheckoutSessionStatus(ctx, session.ID, d.CheckoutStatusFailed, reason); err != nil {
		s.logger.WarnContext(ctx, "failed to mark checkout failed", "checkout_id", session.ID, "error", err)
	}
	if session.Status == d.CheckoutStatusPaymentPending {
		// the gateway answered after all; nothing is left to reconcile
		s.recon.Resolve(ctx, session)
	}
	session.Status = d.CheckoutStatusFailed
	session.FailureReason = reason

	if cause != nil {
		return fmt.Errorf("%w: %w", ErrPaymentFailed, cause)
	}
	return fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
}

func confirmedPayment(session *r.CheckoutSession) PaymentResult {
	if session.PaymentMethod == d.PaymentMethodCOD {
		return PaymentResult{
			Method: d.PaymentMethodCOD,
			Ref:    "cod_" + session.ID.String(),
			Status: d.PaymentStatusCODPending,
		}
	}
	return PaymentResult{
		Method: d.PaymentMethodCard,
		Ref:    session.PaymentRef,
		Status: payment.StatusSucceeded,
	}
}

// persist saves the order from the checkout's snapshot, then clears the cart and wakes
// the notifier. The order is the point of no return.
func (s *CheckoutService) persist(ctx context.Context, session *r.CheckoutSession, paid PaymentResult) (*d.CompleteResponse, error) {
	order, err := s.orders.CreateOrder(ctx, CreateOrderInput{
		CheckoutID: session.ID,
		UserID:     session.UserID,
		Email:      session.Email,
		Lines:      session.CartSnapshot.Lines,
		Shipping:   *session.Shipping,
		Payment:    paid,
	})
	if errors.Is(err, r.ErrDuplicatePayment) {
		existing, lookupErr := s.existingOrder(ctx, session, paid.Ref)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to load existing order: %w", lookupErr)
		}
		s.logger.InfoContext(ctx, "order already exists for checkout", "checkout_id", session.ID, "order_id", existing.ID)
		return &d.CompleteResponse{Order: existing, Status: d.CheckoutStatusOrderPersisted, Duplicate: true}, nil
	}
	if err != nil {
		s.metrics.RecordCheckout("persist", err)
		return nil, fmt.Errorf("%w: %w", ErrOrderPersistFailed, err)
	}
	s.metrics.RecordCheckout("persist", nil)

	session.OrderID = &order.ID
	session.Status = d.CheckoutStatusOrderPersisted
	s.clearCart(ctx, session)

	s.notifier.Wake()
	return &d.CompleteResponse{Order: order, Status: session.Status}, nil
}

func (s *CheckoutService) existingOrder(ctx context.Context, session *r.CheckoutSession, paymentRef string) (*d.Order, error) {
	order, err := s.orders.repo.GetOrderByCheckoutID(ctx, session.ID)
	if errors.Is(err, r.ErrOrderNotFound) {
		return s.orders.repo.GetOrderByPaymentRef(ctx, paymentRef)
	}
	return order, err
}

func (s *CheckoutService) clearCart(ctx context.Context, session *r.CheckoutSession) {
	n, err := s.cart.clear(ctx, session.UserID)
	if err == nil && n == 0 && !session.CartSnapshot.IsEmpty() {
		err = errors.New("no lines removed")
	}
	s.metrics.RecordCheckout("clear_cart", err)
	if err != nil {
		s.logger.WarnContext(ctx, "cart not cleared after order",
			"checkout_id", session.ID,
			"order_id", session.OrderID,
			"user_id", session.UserID,
			"error", fmt.Errorf("%w: %w", ErrCartClearFailed, err))
		return
	}

	if err := s.sessions.UpdateCheckoutSessionStatus(ctx, session.ID, d.CheckoutStatusCartCleared, ""); err != nil {
		s.logger.WarnContext(ctx, "failed to record cleared cart", "checkout_id", session.ID, "error", err)
		return
	}
	session.Status = d.CheckoutStatusCartCleared
}
