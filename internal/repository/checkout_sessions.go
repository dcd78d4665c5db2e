package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/money"
)

type CheckoutSession struct {
	ID              uuid.UUID
	UserID          string
	IdempotencyKey  string
	CartID          string
	CartSnapshot    d.CartSnapshot
	Status          d.CheckoutStatus
	PaymentMethod   d.PaymentMethod
	PaymentIntentID string
	PaymentRef      string
	Shipping        *d.Shipping
	Email           string
	Subtotal        money.Amount
	ShippingCharge  money.Amount
	GrandTotal      money.Amount
	Currency        string
	OrderID         *uuid.UUID
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *CheckoutSession) Totals() d.Totals {
	return d.Totals{
		Subtotal:       s.Subtotal,
		ShippingCharge: s.ShippingCharge,
		GrandTotal:     s.GrandTotal,
		Currency:       s.Currency,
	}
}

const sessionColumns = `id, user_id, idempotency_key, cart_id, cart_snapshot, status, payment_method,
	payment_intent_id, payment_ref, shipping, email, subtotal, shipping_charge, grand_total, currency,
	order_id, failure_reason, created_at, updated_at`

// CreateCheckoutSession stores a new attempt in awaiting_payment. A concurrent attempt with
// the same idempotency key loses with ErrDuplicateIdempotencyKey.
func (r *Repository) CreateCheckoutSession(ctx context.Context, s *CheckoutSession) error {
	snapshotJSON, err := json.Marshal(s.CartSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	query := `INSERT INTO checkout_sessions (id, user_id, idempotency_key, cart_id, cart_snapshot, status,
	          payment_method, payment_intent_id, subtotal, shipping_charge, grand_total, currency, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.IdempotencyKey,
		s.CartID,
		snapshotJSON,
		d.CheckoutStatusAwaitingPayment,
		s.PaymentMethod,
		s.PaymentIntentID,
		s.Subtotal,
		s.ShippingCharge,
		s.GrandTotal,
		s.Currency)
	if isUniqueViolation(err) {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}

	s.Status = d.CheckoutStatusAwaitingPayment
	return nil
}

func (r *Repository) GetCheckoutSessionByIdempotencyKey(ctx context.Context, key string) (*CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE idempotency_key = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout session: %w", err)
	}
	return s, nil
}

func (r *Repository) UpdateCheckoutSessionStatus(ctx context.Context, id uuid.UUID, status d.CheckoutStatus, reason string) error {
	query := `UPDATE checkout_sessions SET status = $1, failure_reason = $2, updated_at = NOW() WHERE id = $3`
	return r.execSession(ctx, query, status, reason, id)
}

// RestartCheckoutSession moves an unpaid attempt back to awaiting_payment, possibly with
// another payment method and intent.
func (r *Repository) RestartCheckoutSession(ctx context.Context, id uuid.UUID, method d.PaymentMethod, intentID string) error {
	query := `UPDATE checkout_sessions
	          SET status = $1, payment_method = $2, payment_intent_id = $3, failure_reason = '', updated_at = NOW()
	          WHERE id = $4 AND order_id IS NULL`
	return r.execSession(ctx, query, d.CheckoutStatusAwaitingPayment, method, intentID, id)
}

func (r *Repository) SetPaymentConfirmed(ctx context.Context, id uuid.UUID, paymentRef string, shipping d.Shipping, email string) error {
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping: %w", err)
	}

	query := `UPDATE checkout_sessions
	          SET status = $1, payment_ref = $2, shipping = $3, email = $4, failure_reason = '', updated_at = NOW()
	          WHERE id = $5 AND order_id IS NULL`
	return r.execSession(ctx, query, d.CheckoutStatusPaymentConfirmed, paymentRef, shippingJSON, email, id)
}

// SetPaymentPending records that the gateway gave no final answer for the attempt. It
// never moves a confirmed or failed attempt back.
func (r *Repository) SetPaymentPending(ctx context.Context, id uuid.UUID, shipping d.Shipping, email, reason string) error {
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping: %w", err)
	}

	query := `UPDATE checkout_sessions
	          SET status = $1, shipping = $2, email = $3, failure_reason = $4, updated_at = NOW()
	          WHERE id = $5 AND order_id IS NULL AND status IN ($6, $1)`
	return r.execSession(ctx, query, d.CheckoutStatusPaymentPending, shippingJSON, email, reason, id, d.CheckoutStatusAwaitingPayment)
}

// GetStuckSessions returns attempts last touched more than grace ago that still need
// work: a confirmed payment without an order, a payment whose outcome is unknown, or an
// order whose cart was never cleared.
func (r *Repository) GetStuckSessions(ctx context.Context, grace time.Duration, limit int) ([]*CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE ((status IN ($1, $2) AND order_id IS NULL) OR status = $3) AND updated_at < $4
	          ORDER BY updated_at
	          LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query,
		d.CheckoutStatusPaymentConfirmed,
		d.CheckoutStatusPaymentPending,
		d.CheckoutStatusOrderPersisted,
		time.Now().Add(-grace),
		limit)
	if err != nil {
		return nil, fmt.Errorf("query stuck sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func (r *Repository) execSession(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*CheckoutSession, error) {
	var (
		s            CheckoutSession
		snapshotJSON []byte
		shippingJSON []byte
		orderID      uuid.NullUUID
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.IdempotencyKey,
		&s.CartID,
		&snapshotJSON,
		&s.Status,
		&s.PaymentMethod,
		&s.PaymentIntentID,
		&s.PaymentRef,
		&shippingJSON,
		&s.Email,
		&s.Subtotal,
		&s.ShippingCharge,
		&s.GrandTotal,
		&s.Currency,
		&orderID,
		&s.FailureReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(snapshotJSON, &s.CartSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	if len(shippingJSON) > 0 {
		var shipping d.Shipping
		if err := json.Unmarshal(shippingJSON, &shipping); err != nil {
			return nil, fmt.Errorf("unmarshal shipping: %w", err)
		}
		s.Shipping = &shipping
	}
	if orderID.Valid {
		id := orderID.UUID
		s.OrderID = &id
	}
	return &s, nil
}
