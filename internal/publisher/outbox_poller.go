package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtalha0777/arfurniture/internal/metrics"
	r "github.com/mtalha0777/arfurniture/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	batchSize  = 100
	baseDelay  = time.Second
	maxBackoff = 5 * time.Minute
)

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	MarkEventFailed(ctx context.Context, id int64, nextAttempt time.Time, cause string) error
	GetStuckSessions(ctx context.Context, grace time.Duration, limit int) ([]*r.CheckoutSession, error)
}

// Resumer moves a stuck checkout forward: an order for a confirmed payment, another
// verification for a pending one, or the cart clear that failed after an order.
type Resumer interface {
	Resume(ctx context.Context, session *r.CheckoutSession) error
}

// ResumerFunc adapts a function to Resumer.
type ResumerFunc func(ctx context.Context, session *r.CheckoutSession) error

func (f ResumerFunc) Resume(ctx context.Context, session *r.CheckoutSession) error {
	return f(ctx, session)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Config struct {
	EventTick     time.Duration
	RecoveryTick  time.Duration
	RecoveryGrace time.Duration
	Timeout       time.Duration
}

// OutboxPoller publishes order events written in the order transaction and recovers
// checkouts that stalled between payment and order.
type OutboxPoller struct {
	cfg     Config
	repo    OutboxRepository
	resumer Resumer
	writer  MessageWriter
	metrics *metrics.Metrics
	logger  *slog.Logger
	wake    chan struct{}
	now     func() time.Time
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxRepository, resumer Resumer, writer MessageWriter, cfg Config, m *metrics.Metrics, logger *slog.Logger) *OutboxPoller {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OutboxPoller{
		cfg:     cfg,
		repo:    repo,
		resumer: resumer,
		writer:  writer,
		metrics: m,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Wake asks for a publish pass without waiting for the next tick. It never blocks.
func (p *OutboxPoller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.cfg.EventTick)
	recoveryTicker := time.NewTicker(p.cfg.RecoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()

	p.logger.Info("outbox poller started", "event_tick", p.cfg.EventTick, "recovery_tick", p.cfg.RecoveryTick)
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-p.wake:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			next := p.now().Add(backoff(event.Attempts))
			p.logger.WarnContext(ctx, "failed to publish outbox event",
				"event_id", event.ID,
				"attempts", event.Attempts+1,
				"next_attempt_at", next,
				"error", err)
			if markErr := p.repo.MarkEventFailed(ctx, event.ID, next, err.Error()); markErr != nil {
				p.logger.ErrorContext(ctx, "failed to record outbox failure", "event_id", event.ID, "error", markErr)
			}
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// published twice at worst; consumers are idempotent per order id
			p.logger.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", err)
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
	p.metrics.RecordOutboxPublish(event.EventType, err)
	return err
}

// recoverStuckSessions hands every checkout the buyer left unfinished to the resumer.
func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	sessions, err := p.repo.GetStuckSessions(ctx, p.cfg.RecoveryGrace, batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to get stuck sessions", "error", err)
		return
	}

	for _, session := range sessions {
		p.logger.InfoContext(ctx, "recovering stuck checkout", "checkout_id", session.ID, "status", session.Status)
		if err := p.resumer.Resume(ctx, session); err != nil {
			p.logger.ErrorContext(ctx, "failed to recover stuck checkout", "checkout_id", session.ID, "error", err)
		}
	}
}

func backoff(attempts int) time.Duration {
	if attempts > 16 {
		return maxBackoff
	}
	d := baseDelay << attempts
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
