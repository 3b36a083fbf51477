package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Enrollment outcomes reported to Prometheus.
const (
	EnrollmentOutcomeCreated   = "created"
	EnrollmentOutcomeCancelled = "cancelled"
	EnrollmentOutcomeRejected  = "rejected"
)

// MetricsService owns the Prometheus registry of the API. Every method is
// safe on a nil receiver so services can run without instrumentation.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	enrollments        *prometheus.CounterVec
	certificatesIssued prometheus.Counter
	auditFailures      prometheus.Counter
	rateLimited        *prometheus.CounterVec
	notifications      *prometheus.CounterVec
}

// NewMetricsService registers the HTTP and domain collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sgea_enrollments_total",
		Help: "Enrollment ledger operations by outcome",
	}, []string{"outcome", "reason"})

	certificatesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sgea_certificates_issued_total",
		Help: "Certificates written by issuance passes",
	})

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit entries that could not be persisted",
	})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sgea_rate_limited_total",
		Help: "Requests rejected by the daily rate ceiling",
	}, []string{"scope"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sgea_notifications_total",
		Help: "Registration notifications by delivery status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollments, certificatesIssued, auditFailures, rateLimited, notifications, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		enrollments:        enrollments,
		certificatesIssued: certificatesIssued,
		auditFailures:      auditFailures,
		rateLimited:        rateLimited,
		notifications:      notifications,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request duration and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordEnrollment counts a ledger outcome; reason is empty unless rejected.
func (m *MetricsService) RecordEnrollment(outcome, reason string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome, reason).Inc()
}

// AddCertificatesIssued adds n to the issued counter.
func (m *MetricsService) AddCertificatesIssued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.certificatesIssued.Add(float64(n))
}

// IncAuditWriteFailure counts a swallowed audit failure.
func (m *MetricsService) IncAuditWriteFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// IncRateLimited counts a rejected request for scope.
func (m *MetricsService) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// RecordNotification counts a notification delivery status.
func (m *MetricsService) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}
