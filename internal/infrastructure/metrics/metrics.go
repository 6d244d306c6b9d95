package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/sunwatch/internal/refresh"
)

const namespace = "sunwatch"

// Metrics holds the collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	refreshCycles   *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	snapshotFields  prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	wsClients     prometheus.Gauge
	mqttPublishes *prometheus.CounterVec
}

// New creates a Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshotFields: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_fields",
			Help:      "Raw fields captured by the last successful cycle.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		mqttPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "MQTT snapshot publishes by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshCycles,
		m.refreshDuration,
		m.snapshotFields,
		m.httpRequests,
		m.httpDuration,
		m.wsClients,
		m.mqttPublishes,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle implements refresh.Observer.
func (m *Metrics) ObserveCycle(outcome refresh.Outcome, duration time.Duration, fields int) {
	if m == nil {
		return
	}
	m.refreshCycles.WithLabelValues(string(outcome)).Inc()
	m.refreshDuration.Observe(duration.Seconds())
	if outcome == refresh.OutcomeSuccess {
		m.snapshotFields.Set(float64(fields))
	}
}

// HealthSource is the part of the cache the gauges read.
type HealthSource interface {
	Health() refresh.Health
}

// WatchCache registers gauges that read the cache state at scrape time.
// Call it at most once per Metrics.
func (m *Metrics) WatchCache(src HealthSource) {
	if m == nil || src == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_state",
			Help:      "Cache state (0 empty, 1 fresh, 2 stale).",
		}, func() float64 {
			return StateValue(src.Health().State)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_age_seconds",
			Help:      "Age of the published snapshot.",
		}, func() float64 {
			return src.Health().AgeSeconds
		}),
	)
}

// StateValue maps a cache state onto the cache_state gauge.
func StateValue(s refresh.State) float64 {
	switch s {
	case refresh.StateFresh:
		return 1
	case refresh.StateStale:
		return 2
	default:
		return 0
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// SetWebSocketClients records the connected client count.
func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// MQTTPublish records a snapshot publish attempt.
func (m *Metrics) MQTTPublish(success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.mqttPublishes.WithLabelValues(result).Inc()
}
