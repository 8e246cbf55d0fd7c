// Package metrics exposes prometheus instruments for the pipeline.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels kept low-cardinality on purpose.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeTransient = "transient"
	OutcomeInvalid   = "invalid"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// SubmitterMetrics captures submission pipeline health signals.
type SubmitterMetrics struct {
	batchRuns      prometheus.Counter
	batchDuration  prometheus.Observer
	processed      *prometheus.CounterVec
	staleRecovered prometheus.Counter
	ingested       *prometheus.CounterVec
}

var (
	submitterMetricsOnce sync.Once
	submitterMetrics     *SubmitterMetrics
)

// Submitter returns the singleton submitter metrics registry.
func Submitter() *SubmitterMetrics {
	return SubmitterWithConfig(Config{})
}

// SubmitterWithConfig returns the singleton using config labels. The first
// caller wins; later configs are ignored.
func SubmitterWithConfig(cfg Config) *SubmitterMetrics {
	submitterMetricsOnce.Do(func() {
		submitterMetrics = newSubmitterMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return submitterMetrics
}

// ResetSubmitterMetricsForTest resets the singleton for tests.
func ResetSubmitterMetricsForTest() {
	submitterMetricsOnce = sync.Once{}
	submitterMetrics = nil
}

func newSubmitterMetrics(registerer prometheus.Registerer, cfg Config) *SubmitterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "fatoora"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	batchRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fatoora_submitter_batch_runs_total",
		Help:        "Submission batch passes.",
		ConstLabels: constLabels,
	})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "fatoora_submitter_batch_duration_seconds",
		Help:        "Submission batch latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fatoora_submitter_invoices_processed_total",
		Help:        "Invoices processed by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	staleRecovered := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fatoora_submitter_stale_recovered_total",
		Help:        "Stuck in-progress invoices re-offered for submission.",
		ConstLabels: constLabels,
	})
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fatoora_ingest_records_total",
		Help:        "Ingested feed records by result.",
		ConstLabels: constLabels,
	}, []string{"result"})

	for _, c := range []prometheus.Collector{batchRuns, batchDuration, processed, staleRecovered, ingested} {
		// duplicate registration happens when tests rebuild the singleton
		_ = registerer.Register(c)
	}

	return &SubmitterMetrics{
		batchRuns:      batchRuns,
		batchDuration:  batchDuration,
		processed:      processed,
		staleRecovered: staleRecovered,
		ingested:       ingested,
	}
}

func (m *SubmitterMetrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchRuns.Inc()
	m.batchDuration.Observe(d.Seconds())
}

func (m *SubmitterMetrics) IncProcessed(outcome string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(outcome).Inc()
}

func (m *SubmitterMetrics) AddStaleRecovered(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.staleRecovered.Add(float64(n))
}

func (m *SubmitterMetrics) AddIngested(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingested.WithLabelValues(result).Add(float64(n))
}
