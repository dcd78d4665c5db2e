package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CheckoutOutcomes    *prometheus.CounterVec
	Reconciliations     prometheus.Counter
	OutboxPublished     *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
}

// New registers the service collectors on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfurniture_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arfurniture_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		CheckoutOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfurniture_checkout_outcomes_total",
				Help: "Checkout steps by outcome",
			},
			[]string{"step", "outcome"},
		),
		Reconciliations: f.NewCounter(prometheus.CounterOpts{
			Name: "arfurniture_reconciliation_required_total",
			Help: "Payments captured without a persisted order",
		}),
		OutboxPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfurniture_outbox_published_total",
				Help: "Outbox events published to Kafka",
			},
			[]string{"event_type", "status"},
		),
		NotificationsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfurniture_notifications_sent_total",
				Help: "Order confirmation emails",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) RecordCheckout(step string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.CheckoutOutcomes.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

func (m *Metrics) RecordOutboxPublish(eventType string, err error) {
	if m == nil {
		return
	}
	status := "published"
	if err != nil {
		status = "failed"
	}
	m.OutboxPublished.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(status).Inc()
}
