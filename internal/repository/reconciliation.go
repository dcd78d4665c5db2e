package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mtalha0777/arfurniture/internal/money"
)

// ReconciliationEvent marks a captured payment that has no order.
type ReconciliationEvent struct {
	ID         int64
	CheckoutID uuid.UUID
	UserID     string
	PaymentRef string
	Amount     money.Amount
	Currency   string
	Reason     string
	CreatedAt  time.Time
}

func (r *Repository) RecordReconciliation(ctx context.Context, e *ReconciliationEvent) error {
	query := `INSERT INTO reconciliation_events (checkout_id, user_id, payment_ref, amount, currency, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW())
	          RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.CheckoutID,
		e.UserID,
		e.PaymentRef,
		e.Amount,
		e.Currency,
		e.Reason).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reconciliation event: %w", err)
	}
	return nil
}

// ResolveReconciliations closes open events for a checkout once its order exists.
func (r *Repository) ResolveReconciliations(ctx context.Context, checkoutID uuid.UUID) error {
	query := `UPDATE reconciliation_events SET resolved_at = NOW() WHERE checkout_id = $1 AND resolved_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, checkoutID); err != nil {
		return fmt.Errorf("resolve reconciliation events: %w", err)
	}
	return nil
}
