package service

import (
	"context"
	"time"

	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/payment"
)

type CartHandler struct {
	store   CartStore
	timeout time.Duration
}

func NewCartHandler(store CartStore, timeout time.Duration) *CartHandler {
	return &CartHandler{
		store:   store,
		timeout: timeout,
	}
}

func (h *CartHandler) snapshot(ctx context.Context, userID string) (*d.CartSnapshot, error) {
	cartCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.store.Snapshot(cartCtx, userID)
}

func (h *CartHandler) clear(ctx context.Context, userID string) (int, error) {
	cartCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.store.Clear(cartCtx, userID)
}

func (h *CartHandler) removeLine(ctx context.Context, userID, productID string) error {
	cartCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.store.RemoveLine(cartCtx, userID, productID)
}

type PaymentHandler struct {
	gateway payment.Gateway
	timeout time.Duration
}

func NewPaymentHandler(gateway payment.Gateway, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		timeout: timeout,
	}
}

func (h *PaymentHandler) createIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	payCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.CreateIntent(payCtx, req)
}

func (h *PaymentHandler) verify(ctx context.Context, token string) (*payment.Confirmation, error) {
	payCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.gateway.Verify(payCtx, token)
}
