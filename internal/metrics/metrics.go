package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the carshare service.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream API metrics.
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	BreakerState            *prometheus.GaugeVec

	// Session resolution metrics.
	ResolverFallbacksTotal *prometheus.CounterVec
	SessionCacheTotal      *prometheus.CounterVec
	NormalizeFailuresTotal prometheus.Counter

	// Poller metrics.
	PollsTotal        *prometheus.CounterVec
	PollsSkippedTotal *prometheus.CounterVec
	PollInterval      *prometheus.GaugeVec

	// Lifecycle and side-channel.
	SessionTransitionsTotal *prometheus.CounterVec
	MQTTPublishTotal        *prometheus.CounterVec
	WebSocketClients        prometheus.Gauge

	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_upstream_requests_total",
			Help: "Total number of requests sent to the car-sharing API.",
		}, []string{"endpoint", "outcome"}),

		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carshare_upstream_request_duration_seconds",
			Help:    "Car-sharing API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carshare_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),

		ResolverFallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_resolver_fallbacks_total",
			Help: "Dedicated session queries that fell back to the full collection.",
		}, []string{"query", "result"}),

		SessionCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_session_cache_total",
			Help: "Session collection cache lookups.",
		}, []string{"result"}),

		NormalizeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carshare_normalize_failures_total",
			Help: "Nested payload fields that could not be repaired.",
		}),

		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_polls_total",
			Help: "Poll executions by poller and result.",
		}, []string{"poller", "result"}),

		PollsSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_polls_skipped_total",
			Help: "Poll ticks skipped because the previous poll was still in flight.",
		}, []string{"poller"}),

		PollInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carshare_poll_interval_seconds",
			Help: "Current poll interval including backoff.",
		}, []string{"poller"}),

		SessionTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_session_transitions_total",
			Help: "Session lifecycle transitions.",
		}, []string{"from", "to"}),

		MQTTPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshare_mqtt_publish_total",
			Help: "MQTT notifications by topic and result.",
		}, []string{"topic", "result"}),

		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carshare_websocket_clients",
			Help: "Connected WebSocket clients.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carshare_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.BreakerState,
		m.ResolverFallbacksTotal,
		m.SessionCacheTotal,
		m.NormalizeFailuresTotal,
		m.PollsTotal,
		m.PollsSkippedTotal,
		m.PollInterval,
		m.SessionTransitionsTotal,
		m.MQTTPublishTotal,
		m.WebSocketClients,
		m.ServerStartTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpstream records a request to the car-sharing API.
func (m *Metrics) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// SetBreakerState records the breaker state.
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}

// IncFallback records a resolver fallback.
func (m *Metrics) IncFallback(query, result string) {
	if m == nil {
		return
	}
	m.ResolverFallbacksTotal.WithLabelValues(query, result).Inc()
}

// IncCache records a session cache lookup ("hit", "miss", "error").
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.SessionCacheTotal.WithLabelValues(result).Inc()
}

// IncNormalizeFailure records an unrepaired nested field.
func (m *Metrics) IncNormalizeFailure() {
	if m == nil {
		return
	}
	m.NormalizeFailuresTotal.Inc()
}

// IncPoll records a poll result.
func (m *Metrics) IncPoll(poller, result string) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(poller, result).Inc()
}

// IncPollSkipped records a skipped tick.
func (m *Metrics) IncPollSkipped(poller string) {
	if m == nil {
		return
	}
	m.PollsSkippedTotal.WithLabelValues(poller).Inc()
}

// SetPollInterval records the current interval of a poller.
func (m *Metrics) SetPollInterval(poller string, d time.Duration) {
	if m == nil {
		return
	}
	m.PollInterval.WithLabelValues(poller).Set(d.Seconds())
}

// IncTransition records a session lifecycle transition.
func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncMQTTPublish records an MQTT publish attempt.
func (m *Metrics) IncMQTTPublish(topic, result string) {
	if m == nil {
		return
	}
	m.MQTTPublishTotal.WithLabelValues(topic, result).Inc()
}

// SetWebSocketClients records the connected client count.
func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(n))
}
