package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics records webhook delivery outcomes for the dispatch engine.
type DeliveryMetrics struct {
	attempts   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_attempts_total",
		Help: "Individual webhook delivery attempts.",
	}, []string{"event_type"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook deliveries by terminal outcome.",
	}, []string{"event_type", "outcome"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_dropped_total",
		Help: "Events dropped before fan-out.",
	}, []string{"reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Wall time of a delivery from first attempt to terminal outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_queue_depth",
		Help: "Domain events waiting in the dispatch queue.",
	})
	reg.MustRegister(attempts, deliveries, dropped, duration, queueDepth)
	return &DeliveryMetrics{
		attempts:   attempts,
		deliveries: deliveries,
		dropped:    dropped,
		duration:   duration,
		queueDepth: queueDepth,
	}
}

// IncAttempt counts one HTTP attempt for the given event type.
func (m *DeliveryMetrics) IncAttempt(eventType string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveOutcome records a terminal delivery outcome and its duration.
func (m *DeliveryMetrics) ObserveOutcome(eventType, outcome string, elapsed time.Duration) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(elapsed.Seconds())
}

// IncDropped counts an event dropped before any delivery was attempted.
func (m *DeliveryMetrics) IncDropped(reason string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// SetQueueDepth reports the current dispatch queue length.
func (m *DeliveryMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
