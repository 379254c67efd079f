package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector holds the Prometheus metrics of accountd. It implements
// cache.Metrics.
type Collector struct {
	registry *prometheus.Registry

	CacheLookups      *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
	CacheInvalidation *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Cache backend and codec failures by operation",
			},
			[]string{"op"},
		),
		CacheInvalidation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "invalidated_keys_total",
				Help:      "Keys removed by invalidation kind",
			},
			[]string{"kind"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.CacheLookups,
		c.CacheErrors,
		c.CacheInvalidation,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry to expose.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Lookup(hit bool) {
	if hit {
		c.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookups.WithLabelValues("miss").Inc()
}

func (c *Collector) Error(op string) {
	c.CacheErrors.WithLabelValues(op).Inc()
}

func (c *Collector) Invalidated(kind string, keys int) {
	c.CacheInvalidation.WithLabelValues(kind).Add(float64(keys))
}
