// Package metrics holds the Prometheus collectors shared by the gateways,
// the orchestrator and the session controller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "claimcheck"

var (
	// UpstreamRequests counts agent calls by agent id and outcome
	// (status class, "timeout", "error", "not_configured").
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Calls to the hosted verification agents.",
	}, []string{"agent", "outcome"})

	// UpstreamDuration observes agent call latency
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of calls to the hosted verification agents.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 20, 25, 30},
	}, []string{"agent"})

	// GatewayResponses counts gateway responses by gateway and status code
	GatewayResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_responses_total",
		Help:      "Responses written by the agent gateways.",
	}, []string{"gateway", "code"})

	// Orchestrations counts finished evidence orchestrations by result
	Orchestrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orchestrations_total",
		Help:      "Finished per-claim evidence orchestrations.",
	}, []string{"result"})

	// Sessions counts fact-check submissions by result
	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Fact-check submissions.",
	}, []string{"result"})
)

// StatusClass buckets an HTTP status code for labelling ("2xx", "4xx", ...)
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
