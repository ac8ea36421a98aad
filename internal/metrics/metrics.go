// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider interface {
	IncRequestsTotal(route string, status int)
	ObserveRequestDuration(route string, duration time.Duration)
	IncPostsCreated(postType string)
	IncModerationRejected(subject string)
	IncStreakUpdates(kind string)
	IncCacheHits()
	IncCacheMisses()
	Handler() http.Handler
}

type PrometheusProvider struct {
	registry           *prometheus.Registry
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	postsCreated       *prometheus.CounterVec
	moderationRejected *prometheus.CounterVec
	streakUpdates      *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// New returns a provider backed by its own registry, or a no-op provider
// when enabled is false.
func New(enabled bool) Provider {
	if !enabled {
		return noopMetrics{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusProvider{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "allgood_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allgood_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		postsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "allgood_posts_created_total",
			Help: "Posts persisted, by type",
		}, []string{"type"}),

		moderationRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "allgood_moderation_rejected_total",
			Help: "Texts rejected by moderation, by subject",
		}, []string{"subject"}),

		streakUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "allgood_streak_updates_total",
			Help: "Streak transitions applied, by kind",
		}, []string{"kind"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "allgood_cache_hits_total",
			Help: "Total number of feed cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "allgood_cache_misses_total",
			Help: "Total number of feed cache misses",
		}),
	}
}

func (m *PrometheusProvider) IncRequestsTotal(route string, status int) {
	m.requestsTotal.WithLabelValues(route, httpStatusBucket(status)).Inc()
}

func (m *PrometheusProvider) ObserveRequestDuration(route string, duration time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *PrometheusProvider) IncPostsCreated(postType string) {
	m.postsCreated.WithLabelValues(postType).Inc()
}

func (m *PrometheusProvider) IncModerationRejected(subject string) {
	m.moderationRejected.WithLabelValues(subject).Inc()
}

func (m *PrometheusProvider) IncStreakUpdates(kind string) {
	m.streakUpdates.WithLabelValues(kind).Inc()
}

func (m *PrometheusProvider) IncCacheHits() { m.cacheHits.Inc() }

func (m *PrometheusProvider) IncCacheMisses() { m.cacheMisses.Inc() }

func (m *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

func (noopMetrics) IncRequestsTotal(string, int)                 {}
func (noopMetrics) ObserveRequestDuration(string, time.Duration) {}
func (noopMetrics) IncPostsCreated(string)                       {}
func (noopMetrics) IncModerationRejected(string)                 {}
func (noopMetrics) IncStreakUpdates(string)                      {}
func (noopMetrics) IncCacheHits()                                {}
func (noopMetrics) IncCacheMisses()                              {}
func (noopMetrics) Handler() http.Handler                        { return http.NotFoundHandler() }
