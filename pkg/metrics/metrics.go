package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lis"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by method, route and status code."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency by method and route.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SchedulingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "scheduling_conflicts_total", Help: "Appointment bookings rejected because the slot overlaps another appointment."},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "job_runs_total", Help: "Background job runs by job and outcome."},
		[]string{"job", "outcome"},
	)
	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "audit_write_failures_total", Help: "Audit log entries that could not be stored."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SchedulingConflicts)
	reg.MustRegister(JobRuns)
	reg.MustRegister(AuditWriteFailures)
}
