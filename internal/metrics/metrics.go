// Package metrics exposes Prometheus collectors for the HTTP layer, the
// inventory service, the event publisher and the sheets mirror.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luxstock"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	mutations    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	viewDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
	mirrorWrites *prometheus.CounterVec
	security     *prometheus.CounterVec
}

// New builds a private registry with the runtime collectors and the
// application collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_mutations_total",
			Help:      "Item create/update/delete operations by outcome.",
		}, []string{"operation", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_cache_lookups_total",
			Help:      "Period cache lookups by result.",
		}, []string{"result"}),
		viewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inventory_view_duration_seconds",
			Help:      "Time to build a monthly or yearly view.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Item change events published to the broker by outcome.",
		}, []string{"result"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_mirror_writes_total",
			Help:      "Month tabs written to Google Sheets by outcome.",
		}, []string{"result"}),
		security: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Rate-limited and suspicious requests.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.mutations,
		m.cacheLookups,
		m.viewDuration,
		m.events,
		m.mirrorWrites,
		m.security,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InstrumentHandler counts and times requests served by next under route.
func (m *Metrics) InstrumentHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		m.httpDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.httpRequests.MustCurryWith(labels), next),
	)
}

func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveView records how long a view took; kind is "monthly", "yearly" or "dashboard".
func (m *Metrics) ObserveView(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.viewDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveEventPublish(err error) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveMirrorWrite(err error) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(result(err)).Inc()
}

// ObserveSecurityEvent counts a rejected or flagged request; kind is
// "rate_limited" or "suspicious".
func (m *Metrics) ObserveSecurityEvent(kind string) {
	if m == nil {
		return
	}
	m.security.WithLabelValues(kind).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
