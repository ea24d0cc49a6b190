package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerMetrics(t *testing.T) {
	metrics := NewMetrics()

	metrics.AppointmentCreated()
	metrics.AppointmentCreated()
	metrics.SchedulingRejected("daily_limit")
	metrics.ObserveOperation("create", "success", 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AppointmentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SchedulingRejections.WithLabelValues("daily_limit")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.OperationDuration))
}

func TestHTTPMetrics(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest("/api/v1/appointments", "POST", 201, 5*time.Millisecond)
	metrics.RecordError("/api/v1/appointments", "POST", "SCHEDULING_CONFLICT")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/v1/appointments", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPErrors.WithLabelValues("/api/v1/appointments", "POST", "SCHEDULING_CONFLICT")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordRequest("/", "GET", 200, time.Millisecond)
		metrics.RecordError("/", "GET", "INTERNAL_ERROR")
		metrics.AppointmentCreated()
		metrics.SchedulingRejected("daily_limit")
		metrics.ObserveOperation("create", "success", time.Millisecond)
	})
}
