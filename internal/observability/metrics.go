// internal/observability/metrics.go

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal    prometheus.Counter
	CyclesDegraded prometheus.Counter
	CycleDuration  prometheus.Histogram
	ItemsScanned   prometheus.Counter

	// Source metrics
	SourceFailures *prometheus.CounterVec
	SourceItems    *prometheus.GaugeVec

	// Catalog metrics
	CompaniesTracked  prometheus.Gauge
	TrendingCompanies prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "buzztrack"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "cycles_total",
			Help:      "Total number of refresh cycles run",
		}),
		CyclesDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "cycles_degraded_total",
			Help:      "Total number of cycles with at least one failed source",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "cycle_duration_seconds",
			Help:      "Refresh cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		ItemsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "items_scanned_total",
			Help:      "Total number of text items matched against the registry",
		}),

		SourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Total number of per-cycle source failures by source",
		}, []string{"source"}),
		SourceItems: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "items",
			Help:      "Number of text items fetched in the last cycle by source",
		}, []string{"source"}),

		CompaniesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "companies",
			Help:      "Number of companies in the registry",
		}),
		TrendingCompanies: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "trending_companies",
			Help:      "Number of companies above the trending threshold in the last cycle",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
