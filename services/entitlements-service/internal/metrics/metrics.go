package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slotwise_entitlements"

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	duration      prometheus.Histogram
	cache         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

func New(registerer prometheus.Registerer, serviceName string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		serviceName = "entitlements-service"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "evaluations_total",
			Help:        "Plan limit evaluations by winning source and outcome.",
			ConstLabels: constLabels,
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "evaluation_duration_seconds",
			Help:        "Wall time of one plan limit evaluation, all round trips included.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: constLabels,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "snapshot_cache_total",
			Help:        "Snapshot cache lookups by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "invalidations_total",
			Help:        "Snapshot invalidations triggered by change events.",
			ConstLabels: constLabels,
		}, []string{"topic"}),
	}
	registerer.MustRegister(m.evaluations, m.duration, m.cache, m.invalidations)
	return m
}

func (m *Metrics) ObserveEvaluation(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(source, outcome).Inc()
	m.duration.Observe(took.Seconds())
}

// CacheResult counts a lookup as "hit", "miss" or "error".
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

func (m *Metrics) Invalidated(topic string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(topic).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
