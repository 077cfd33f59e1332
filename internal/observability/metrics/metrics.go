package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelStatus   = "status"
	LabelMethod   = "method"
	LabelOutcome  = "outcome"
	LabelReason   = "reason"
	LabelProvider = "provider"
	LabelSuccess  = "success"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiongate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessiongate_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// GateDecisionsTotal counts gate decisions by outcome and internal reason
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiongate_gate_decisions_total",
			Help: "Total number of login gate decisions",
		},
		[]string{LabelOutcome, LabelReason},
	)

	// SessionsIssuedTotal counts session tokens minted after a login
	SessionsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiongate_sessions_issued_total",
			Help: "Total number of session tokens issued",
		},
		[]string{LabelProvider, LabelSuccess},
	)

	// UpstreamRequestTotal counts requests forwarded to the upstream application
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiongate_upstream_requests_total",
			Help: "Total number of requests forwarded upstream",
		},
		[]string{LabelMethod, LabelStatus},
	)

	// UpstreamRequestDuration tracks the duration of upstream requests
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessiongate_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordGateDecision records one login gate decision
func (c *Collector) RecordGateDecision(outcome, reason string) {
	GateDecisionsTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordSessionIssued records a session token issuance attempt
func (c *Collector) RecordSessionIssued(provider string, success bool) {
	SessionsIssuedTotal.WithLabelValues(provider, boolToString(success)).Inc()
}

// RecordUpstreamRequest records a request to the upstream application
func (c *Collector) RecordUpstreamRequest(method string, status int, duration time.Duration) {
	UpstreamRequestTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// boolToString converts a boolean to a string representation
func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
