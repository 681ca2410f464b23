package cache

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK        = "ok"
	resultError     = "error"
	resultDiscarded = "discarded"
	resultTimeout   = "timeout"
)

// Metrics exports cache telemetry to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	coalesced       *prometheus.CounterVec
	persistErrors   prometheus.Counter
	clears          prometheus.Counter
	inflight        prometheus.Gauge
}

// NewMetrics registers the cache collectors on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "dairykeeper_entitlements"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Queries answered from a fresh cached value.",
		}, []string{"key"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Queries that found the key empty or stale.",
		}, []string{"key"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Calls to the entitlement source by key and result.",
		}, []string{"key", "result"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Latency of entitlement source calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"key"}),
		coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_waits_total",
			Help:      "Queries that attached to a refresh already in flight.",
		}, []string{"key"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed writes or deletes against the durable store.",
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clears_total",
			Help:      "Whole-cache resets.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refreshes_in_flight",
			Help:      "Refreshes currently waiting on the entitlement source.",
		}),
	}

	collectors := []prometheus.Collector{
		m.hits, m.misses, m.refreshes, m.refreshDuration, m.coalesced, m.persistErrors, m.clears, m.inflight,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register cache metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) hit(key Key) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(key.String()).Inc()
}

func (m *Metrics) miss(key Key) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(key.String()).Inc()
}

func (m *Metrics) refreshed(key Key, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(key.String(), result).Inc()
	if took > 0 {
		m.refreshDuration.WithLabelValues(key.String()).Observe(took.Seconds())
	}
}

func (m *Metrics) joined(key Key) {
	if m == nil {
		return
	}
	m.coalesced.WithLabelValues(key.String()).Inc()
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) cleared() {
	if m == nil {
		return
	}
	m.clears.Inc()
}

func (m *Metrics) flightStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) flightDone() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}
