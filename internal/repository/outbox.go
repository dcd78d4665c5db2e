package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type OutboxEvent struct {
	ID            int64
	AggregateID   string
	EventType     string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, e *OutboxEvent) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, next_attempt_at, created_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          RETURNING id`
	if err := tx.QueryRowContext(ctx, query, e.AggregateID, e.EventType, e.Payload).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetUnprocessedEvents returns events that are due for a publish attempt, oldest first.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, attempts, next_attempt_at, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL AND next_attempt_at <= NOW()
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.NextAttemptAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

// MarkEventFailed records a failed publish and defers the next attempt.
func (r *Repository) MarkEventFailed(ctx context.Context, id int64, nextAttempt time.Time, cause string) error {
	query := `UPDATE outbox_events
	          SET attempts = attempts + 1, next_attempt_at = $1, last_error = $2
	          WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, nextAttempt, cause, id); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
