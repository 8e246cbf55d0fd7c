package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestIncProcessedByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSubmitterMetrics(registry, Config{
		ServiceName: "fatoora",
		Environment: "test",
	})

	m.IncProcessed(OutcomeAccepted)
	m.IncProcessed(OutcomeAccepted)
	m.IncProcessed(OutcomeTransient)

	if got := testutil.ToFloat64(m.processed.WithLabelValues(OutcomeAccepted)); got != 2 {
		t.Fatalf("expected 2 accepted, got %v", got)
	}
	if got := testutil.ToFloat64(m.processed.WithLabelValues(OutcomeTransient)); got != 1 {
		t.Fatalf("expected 1 transient, got %v", got)
	}
	if got := testutil.ToFloat64(m.processed.WithLabelValues(OutcomeRejected)); got != 0 {
		t.Fatalf("expected 0 rejected, got %v", got)
	}
}

func TestObserveBatchStampsConstLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSubmitterMetrics(registry, Config{
		ServiceName: "fatoora",
		Environment: "test",
	})

	m.ObserveBatch(250 * time.Millisecond)
	m.AddStaleRecovered(2)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var stale *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "fatoora_submitter_stale_recovered_total" {
			stale = mf
		}
	}
	if stale == nil {
		t.Fatal("stale recovered metric not registered")
	}

	metric := stale.GetMetric()[0]
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 recovered, got %v", got)
	}
	labels := map[string]string{}
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["service"] != "fatoora" || labels["env"] != "test" {
		t.Fatalf("unexpected const labels: %v", labels)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *SubmitterMetrics
	m.IncProcessed(OutcomeAccepted)
	m.ObserveBatch(time.Second)
	m.AddStaleRecovered(1)
	m.AddIngested("inserted", 1)
}
