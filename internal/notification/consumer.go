package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	maxSendAttempts = 5
	retryDelay      = time.Second
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// Consumer sends order confirmation emails for order.placed events. Offsets are committed
// only after a message was handled, so a crash redelivers it.
type Consumer struct {
	reader     MessageReader
	mailer     Mailer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewConsumer(reader MessageReader, mailer Mailer, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		mailer:     mailer,
		metrics:    m,
		logger:     logger,
		retryDelay: retryDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorContext(ctx, "error reading message", "error", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// not committed, so it is redelivered after restart
				return
			}
			c.logger.ErrorContext(ctx, "order confirmation not sent",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "failed to commit message", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if eventType := header(msg, "event_type"); eventType != "" && eventType != d.EventOrderPlaced {
		return nil
	}

	var event d.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.metrics.RecordNotification("invalid")
		return err
	}
	if event.Email == "" {
		c.logger.InfoContext(ctx, "no email address for order, skipping", "order_id", event.OrderID)
		c.metrics.RecordNotification("skipped")
		return nil
	}

	err := c.sendWithRetry(ctx, orderConfirmation(event))
	if err != nil {
		c.metrics.RecordNotification("failed")
		return err
	}
	c.metrics.RecordNotification("sent")
	c.logger.InfoContext(ctx, "order confirmation sent", "order_id", event.OrderID, "user_id", event.UserID)
	return nil
}

func (c *Consumer) sendWithRetry(ctx context.Context, m Message) error {
	var errs []error
	delay := c.retryDelay
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		err := c.mailer.Send(ctx, m)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		c.logger.WarnContext(ctx, "email send failed", "attempt", attempt, "error", err)

		if attempt == maxSendAttempts || !sleep(ctx, delay) {
			break
		}
		delay *= 2
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
