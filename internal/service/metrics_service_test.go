package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordEnrollment(EnrollmentOutcomeCreated, "")
	m.RecordEnrollment(EnrollmentOutcomeRejected, "CAPACITY_EXCEEDED")
	m.AddCertificatesIssued(3)
	m.AddCertificatesIssued(0)
	m.IncAuditWriteFailure()
	m.IncRateLimited("events")
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/events", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrollments.WithLabelValues(EnrollmentOutcomeRejected, "CAPACITY_EXCEEDED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.certificatesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("events")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audit_write_failures_total 1")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordEnrollment(EnrollmentOutcomeCreated, "")
		m.AddCertificatesIssued(1)
		m.IncAuditWriteFailure()
		m.IncRateLimited("events")
		m.RecordNotification("sent")
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
