package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestDeliveryMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeliveryMetrics(reg)

	m.IncAttempt("task.created")
	m.IncAttempt("task.created")
	m.ObserveOutcome("task.created", "success", 120*time.Millisecond)
	m.IncDropped("no_project_id")
	m.SetQueueDepth(4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	attempts := byName["webhook_delivery_attempts_total"]
	if attempts == nil {
		t.Fatal("attempts metric not registered")
	}
	if got := attempts.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 attempts, got %v", got)
	}

	deliveries := byName["webhook_deliveries_total"]
	if deliveries == nil {
		t.Fatal("deliveries metric not registered")
	}
	if got := deliveries.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 delivery, got %v", got)
	}

	depth := byName["webhook_queue_depth"]
	if depth == nil {
		t.Fatal("queue depth gauge not registered")
	}
	if got := depth.GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Fatalf("expected queue depth 4, got %v", got)
	}
}

func TestDeliveryMetricsNilRegistererIsSafe(t *testing.T) {
	m := NewDeliveryMetrics(nil)
	m.IncAttempt("task.created")
	m.ObserveOutcome("task.created", "failed", time.Second)
	m.IncDropped("resolver_error")
	m.SetQueueDepth(0)
}
