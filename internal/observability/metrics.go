package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorTotal      *prometheus.CounterVec
	workflowTotal   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	errorTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_errors_total",
		Help: "Failed HTTP requests by error code",
	}, []string{"method", "path", "code"})

	workflowTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_workflow_operations_total",
		Help: "Workflow operations by name and outcome",
	}, []string{"operation", "outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_notifications_total",
		Help: "Inbox notifications written by type",
	}, []string{"type"})

	registry.MustRegister(
		requestTotal,
		requestDuration,
		errorTotal,
		workflowTotal,
		notifications,
		prometheus.NewGoCollector(),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		errorTotal:      errorTotal,
		workflowTotal:   workflowTotal,
		notifications:   notifications,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(method, path, code).Inc()
}

// RecordWorkflow counts a workflow operation. outcome is "ok" or an error code.
func (m *Metrics) RecordWorkflow(operation, outcome string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordNotification counts an inbox write.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}
