package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPErrors           *prometheus.CounterVec
	AppointmentsCreated  prometheus.Counter
	SchedulingRejections *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visit_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visit_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visit_http_errors_total",
			Help: "HTTP error responses by route, method and error code",
		}, []string{"route", "method", "code"}),
		AppointmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "visit_appointments_created_total",
			Help: "Appointments successfully scheduled",
		}),
		SchedulingRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visit_scheduling_rejections_total",
			Help: "Scheduler operations rejected by a business rule, by reason",
		}, []string{"reason"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visit_scheduler_operation_duration_seconds",
			Help:    "Scheduler operation latency by operation and outcome",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op", "outcome"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records one served request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(route, method, code).Inc()
}

// AppointmentCreated increments the created counter.
func (m *Metrics) AppointmentCreated() {
	if m == nil {
		return
	}
	m.AppointmentsCreated.Inc()
}

// SchedulingRejected counts a business rule rejection.
func (m *Metrics) SchedulingRejected(reason string) {
	if m == nil {
		return
	}
	m.SchedulingRejections.WithLabelValues(reason).Inc()
}

// ObserveOperation records the latency of a scheduler operation.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}
