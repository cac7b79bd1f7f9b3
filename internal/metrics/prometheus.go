// Package metrics exposes engine counters on a private Prometheus registry.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry            *prometheus.Registry
	transactions        *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	riskScores          prometheus.Histogram
	fraudRejections     prometheus.Counter
	sweepRecords        *prometheus.CounterVec
	notifications       *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronobank",
			Name:      "transactions_total",
			Help:      "Executed transactions by type and outcome",
		}, []string{"type", "outcome"}),
		transactionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronobank",
			Name:      "transaction_duration_seconds",
			Help:      "Time spent executing a transaction command",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		riskScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chronobank",
			Name:      "risk_score",
			Help:      "Distribution of transaction risk scores",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.2, 1.6, 2.0},
		}),
		fraudRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chronobank",
			Name:      "fraud_rejections_total",
			Help:      "Transactions declined by the fraud screen",
		}),
		sweepRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronobank",
			Name:      "sweep_records_total",
			Help:      "Records transitioned by periodic sweeps",
		}, []string{"sweep"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronobank",
			Name:      "notifications_relayed_total",
			Help:      "Notifications handed to the delivery sink by outcome",
		}, []string{"outcome"}),
	}
}

func (c *Collector) RecordTransaction(kind, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(kind, outcome).Inc()
	c.transactionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (c *Collector) RecordRisk(score float64, rejected bool) {
	if c == nil {
		return
	}
	c.riskScores.Observe(score)
	if rejected {
		c.fraudRejections.Inc()
	}
}

func (c *Collector) RecordSweep(sweep string, records int) {
	if c == nil {
		return
	}
	c.sweepRecords.WithLabelValues(sweep).Add(float64(records))
}

func (c *Collector) RecordRelay(delivered, failed int) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues("delivered").Add(float64(delivered))
	c.notifications.WithLabelValues("failed").Add(float64(failed))
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
