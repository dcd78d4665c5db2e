package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/logger"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (r *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *mockReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type mockMailer struct {
	mu       sync.Mutex
	sent     []Message
	failures int
	calls    int
}

func (m *mockMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("421 service not available")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) sentMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func orderMessage(t *testing.T, offset int64, email string) kafka.Message {
	t.Helper()
	event := d.OrderPlacedEvent{
		OrderID:        uuid.MustParse("7f1c2a9e-0000-4000-8000-000000000001"),
		UserID:         "u1",
		Email:          email,
		Items:          []d.OrderItem{{ProductID: "sofa", Name: "Oak Sofa", Price: 100000}, {ProductID: "lamp", Name: "Lamp", Price: 50000}},
		Subtotal:       150000,
		ShippingCharge: 20000,
		GrandTotal:     170000,
		Currency:       "INR",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{
		Offset:  offset,
		Key:     []byte(event.OrderID.String()),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(d.EventOrderPlaced)}},
	}
}

func newTestConsumer(reader *mockReader, mailer *mockMailer) (*Consumer, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	c := NewConsumer(reader, mailer, m, logger.Discard())
	c.retryDelay = time.Millisecond
	return c, m
}

func runUntilCommitted(t *testing.T, c *Consumer, reader *mockReader, n int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reader.commits()) == n }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestConsumer_SendsConfirmation(t *testing.T) {
	reader := &mockReader{messages: []kafka.Message{orderMessage(t, 10, "ayesha@example.com")}}
	mailer := &mockMailer{}
	c, m := newTestConsumer(reader, mailer)

	runUntilCommitted(t, c, reader, 1)

	sent := mailer.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ayesha@example.com", sent[0].To)
	assert.Equal(t, "Your order 7f1c2a9e is confirmed", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Oak Sofa  1000.00 INR")
	assert.Contains(t, sent[0].Body, "Shipping: 200.00 INR")
	assert.Contains(t, sent[0].Body, "Total: 1700.00 INR")
	assert.Equal(t, []int64{10}, reader.commits())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("sent")))
}

func TestConsumer_RetriesSend(t *testing.T) {
	reader := &mockReader{messages: []kafka.Message{orderMessage(t, 1, "ayesha@example.com")}}
	mailer := &mockMailer{failures: 2}
	c, _ := newTestConsumer(reader, mailer)

	runUntilCommitted(t, c, reader, 1)

	assert.Len(t, mailer.sentMessages(), 1)
	assert.Equal(t, 3, mailer.calls)
}

func TestConsumer_GivesUpAfterMaxAttempts(t *testing.T) {
	reader := &mockReader{messages: []kafka.Message{
		orderMessage(t, 1, "ayesha@example.com"),
		orderMessage(t, 2, "bilal@example.com"),
	}}
	mailer := &mockMailer{failures: maxSendAttempts}
	c, m := newTestConsumer(reader, mailer)

	runUntilCommitted(t, c, reader, 2)

	sent := mailer.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "bilal@example.com", sent[0].To)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("failed")))
}

func TestConsumer_SkipsUnusableMessages(t *testing.T) {
	other := orderMessage(t, 2, "ayesha@example.com")
	other.Headers = []kafka.Header{{Key: "event_type", Value: []byte("order.cancelled")}}

	reader := &mockReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{not json`)},
		other,
		orderMessage(t, 3, ""),
	}}
	mailer := &mockMailer{}
	c, m := newTestConsumer(reader, mailer)

	runUntilCommitted(t, c, reader, 3)

	assert.Empty(t, mailer.sentMessages())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("skipped")))
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	c, _ := newTestConsumer(&mockReader{}, &mockMailer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestLogMailer(t *testing.T) {
	err := NewLogMailer(logger.Discard()).Send(context.Background(), Message{To: "a@example.com"})
	assert.NoError(t, err)
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSMTPMailer("localhost:2525", "user", "pass", "orders@example.com").Send(ctx, Message{To: "a@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
