package service

import (
	"context"
	"errors"
	"fmt"

	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/cart"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

// Resume moves a stuck checkout forward. A confirmed payment gets its order, a pending
// payment is verified again, and an order whose cart was never cleared has the bought
// lines removed from the cart.
func (s *CheckoutService) Resume(ctx context.Context, session *r.CheckoutSession) (err error) {
	defer func() { s.metrics.RecordCheckout("resume", err) }()

	switch {
	case session.Status == d.CheckoutStatusOrderPersisted && session.OrderID != nil:
		return s.pruneCart(ctx, session)
	case session.OrderID != nil:
		return nil
	case session.Status == d.CheckoutStatusPaymentPending:
		return s.resumePending(ctx, session)
	case session.Status == d.CheckoutStatusPaymentConfirmed:
		return s.resumeConfirmed(ctx, session)
	}
	return nil
}

func (s *CheckoutService) resumeConfirmed(ctx context.Context, session *r.CheckoutSession) error {
	if session.Shipping == nil || session.PaymentRef == "" {
		return fmt.Errorf("%w: checkout %s has no shipping details or payment reference", ErrIllegalTransition, session.ID)
	}

	resp, err := s.persist(ctx, session, confirmedPayment(session))
	if err != nil {
		return err
	}
	s.recon.Resolve(ctx, session)

	s.logger.InfoContext(ctx, "stuck checkout recovered",
		"checkout_id", session.ID,
		"order_id", resp.Order.ID,
		"duplicate", resp.Duplicate)
	return nil
}

func (s *CheckoutService) resumePending(ctx context.Context, session *r.CheckoutSession) error {
	if session.Shipping == nil {
		return fmt.Errorf("%w: checkout %s has no shipping details", ErrIllegalTransition, session.ID)
	}
	shipping := *session.Shipping

	paid, err := s.confirmPayment(ctx, session, session.PaymentIntentID, shipping, session.Email)
	if errors.Is(err, ErrPaymentFailed) {
		s.logger.InfoContext(ctx, "pending payment failed", "checkout_id", session.ID, "reason", session.FailureReason)
		return nil
	}
	if err != nil {
		return err
	}

	resp, err := s.settle(ctx, session, paid, shipping, session.Email, true)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "pending payment settled",
		"checkout_id", session.ID,
		"order_id", resp.Order.ID,
		"duplicate", resp.Duplicate)
	return nil
}

// pruneCart finishes the clear that failed after the order was saved. Only the bought
// lines go; anything added to the cart after checkout began stays.
func (s *CheckoutService) pruneCart(ctx context.Context, session *r.CheckoutSession) (err error) {
	defer func() { s.metrics.RecordCheckout("clear_cart", err) }()

	current, err := s.cart.snapshot(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCartClearFailed, err)
	}

	bought := make(map[string]bool, len(session.CartSnapshot.Lines))
	for _, l := range session.CartSnapshot.Lines {
		bought[l.ProductID] = true
	}

	removed := 0
	for _, l := range current.Lines {
		if !bought[l.ProductID] || l.AddedAt.After(session.CartSnapshot.CapturedAt) {
			continue
		}
		err := s.cart.removeLine(ctx, session.UserID, l.ProductID)
		if errors.Is(err, cart.ErrLineNotFound) || errors.Is(err, cart.ErrCartNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCartClearFailed, err)
		}
		removed++
	}

	if err := s.sessions.UpdateCheckoutSessionStatus(ctx, session.ID, d.CheckoutStatusCartCleared, ""); err != nil {
		return fmt.Errorf("failed to record cleared cart: %w", err)
	}
	session.Status = d.CheckoutStatusCartCleared

	s.logger.InfoContext(ctx, "bought lines removed from cart",
		"checkout_id", session.ID,
		"order_id", session.OrderID,
		"removed", removed)
	return nil
}
