// Package metrics exposes pipeline counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics implements the metrics hooks of checkout, assets, upload and
// dashboard.
type Metrics struct {
	registry *prometheus.Registry

	checkouts       *prometheus.CounterVec
	checkoutSeconds *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	persistFailures prometheus.Counter
	uploads         *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Checkout submissions by result.",
		}, []string{"result"}),
		checkoutSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Time from submission to checkout outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 3, 5, 10},
		}, []string{"result"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_generations_total",
			Help:      "Image generation calls by result.",
		}, []string{"result"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_persist_failures_total",
			Help:      "Generated assets shown to the user but not stored.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Simulated cloud uploads by result.",
		}, []string{"result"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_snapshots_total",
			Help:      "Live query snapshots applied to dashboard read-models.",
		}, []string{"collection"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.checkouts,
		m.checkoutSeconds,
		m.generations,
		m.persistFailures,
		m.uploads,
		m.snapshots,
	)
	return m
}

func (m *Metrics) ObserveCheckout(result string, elapsed time.Duration) {
	m.checkouts.WithLabelValues(result).Inc()
	m.checkoutSeconds.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveGeneration(result string) {
	m.generations.WithLabelValues(result).Inc()
}

func (m *Metrics) AssetPersistFailed() {
	m.persistFailures.Inc()
}

func (m *Metrics) ObserveUpload(result string) {
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSnapshot(collection string) {
	m.snapshots.WithLabelValues(collection).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
