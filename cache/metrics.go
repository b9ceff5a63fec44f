package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vhvplatform/go-cache/logger"
)

const (
	tierLabelLocal  = "local"
	tierLabelRemote = "remote"

	opLabelSet    = "set"
	opLabelGet    = "get"
	opLabelDelete = "delete"
	opLabelSync   = "sync"
)

// metricSet carries the per-instance counters. Registration failures are
// logged and the counters keep working unregistered, so two providers with
// the same instance name never break each other.
type metricSet struct {
	hits       *prometheus.CounterVec
	misses     prometheus.Counter
	errors     *prometheus.CounterVec
	registered bool
}

func newMetricSet(instance string, register bool, log *logger.Logger) *metricSet {
	constLabels := prometheus.Labels{"instance": instance}
	m := &metricSet{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cache_hit_total",
			Help:        "Cache hits by tier.",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cache_miss_total",
			Help:        "Lookups that found no value on any permitted tier.",
			ConstLabels: constLabels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cache_error_total",
			Help:        "Operation failures by operation.",
			ConstLabels: constLabels,
		}, []string{"op"}),
	}
	if !register {
		return m
	}

	for _, c := range m.collectors() {
		if err := prometheus.Register(c); err != nil {
			log.Warn("failed to register cache metrics", "instance", instance, "error", err)
			return m
		}
	}
	m.registered = true
	return m
}

func (m *metricSet) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.hits, m.misses, m.errors}
}

func (m *metricSet) hit(tier string) {
	m.hits.WithLabelValues(tier).Inc()
}

func (m *metricSet) miss() {
	m.misses.Inc()
}

func (m *metricSet) opError(op string) {
	m.errors.WithLabelValues(op).Inc()
}

func (m *metricSet) unregister() {
	if !m.registered {
		return
	}
	for _, c := range m.collectors() {
		prometheus.Unregister(c)
	}
	m.registered = false
}
