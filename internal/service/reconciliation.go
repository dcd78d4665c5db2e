package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtalha0777/arfurniture/internal/metrics"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

// ReconciliationRecorder raises captured payments that have no order. The log line and
// the metric are the alert; the database row is best effort since the database is
// usually what just failed.
type ReconciliationRecorder struct {
	store   ReconciliationStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewReconciliationRecorder(store ReconciliationStore, m *metrics.Metrics, logger *slog.Logger) *ReconciliationRecorder {
	return &ReconciliationRecorder{store: store, metrics: m, logger: logger}
}

func (rr *ReconciliationRecorder) Record(ctx context.Context, session *r.CheckoutSession, paymentRef string, cause error) {
	rr.raise(ctx, session, "payment captured without order", "reconciliation_required", paymentRef, cause)
}

// RecordPending raises a payment whose outcome the gateway could not report. Recovery
// keeps verifying it and resolves the event once the gateway answers.
func (rr *ReconciliationRecorder) RecordPending(ctx context.Context, session *r.CheckoutSession, cause error) {
	rr.raise(ctx, session, "payment outcome unknown", "payment_outcome_unknown", session.PaymentIntentID, cause)
}

func (rr *ReconciliationRecorder) raise(ctx context.Context, session *r.CheckoutSession, msg, event, paymentRef string, cause error) {
	rr.logger.ErrorContext(ctx, msg,
		"event", event,
		"checkout_id", session.ID,
		"user_id", session.UserID,
		"payment_ref", paymentRef,
		"amount", session.GrandTotal,
		"currency", session.Currency,
		"error", cause)
	rr.metrics.RecordReconciliation()

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := rr.store.RecordReconciliation(storeCtx, &r.ReconciliationEvent{
		CheckoutID: session.ID,
		UserID:     session.UserID,
		PaymentRef: paymentRef,
		Amount:     session.GrandTotal,
		Currency:   session.Currency,
		Reason:     cause.Error(),
	})
	if err != nil {
		rr.logger.ErrorContext(ctx, "failed to store reconciliation event", "checkout_id", session.ID, "error", err)
	}
}

// Resolve closes open reconciliation events once the order exists after all, or once a
// pending payment turned out to have failed.
func (rr *ReconciliationRecorder) Resolve(ctx context.Context, session *r.CheckoutSession) {
	if err := rr.store.ResolveReconciliations(ctx, session.ID); err != nil {
		rr.logger.WarnContext(ctx, "failed to resolve reconciliation events", "checkout_id", session.ID, "error", err)
	}
}
