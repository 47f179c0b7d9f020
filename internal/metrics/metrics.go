// Package metrics owns the prometheus collectors shared by the coordinator,
// the HTTP API and the feed hub. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rankboard"

type Metrics struct {
	registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	mutationSeconds *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	feedEvents      *prometheus.CounterVec
	feedClients     prometheus.Gauge
	rebalances      prometheus.Counter
}

// New builds a private registry so tests and multiple servers never collide
// on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Optimistic mutations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		mutationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_seconds",
			Help:      "Time from submit to commit or rollback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Object API requests by route and status code.",
		}, []string{"route", "code"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Invalidation events published to the feed.",
		}, []string{"type"}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected feed subscribers.",
		}),
		rebalances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_rebalances_total",
			Help:      "Moves that had to renumber part of a sibling group.",
		}),
	}
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Number of active goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	m.registry.MustRegister(
		m.mutations,
		m.mutationSeconds,
		m.requests,
		m.feedEvents,
		m.feedClients,
		m.rebalances,
		goroutines,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveMutation(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, outcome).Inc()
	m.mutationSeconds.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, http.StatusText(code)).Inc()
}

func (m *Metrics) FeedEvent(typ string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(typ).Inc()
}

func (m *Metrics) FeedClients(delta float64) {
	if m == nil {
		return
	}
	m.feedClients.Add(delta)
}

func (m *Metrics) Rebalanced() {
	if m == nil {
		return
	}
	m.rebalances.Inc()
}
