// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gatehouse authorization gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthzBuckets defines histogram buckets suited for authorization
// decisions, ranging from 0.5ms (in-memory policies) to 10s (remote
// identity resolution on a cold cache).
var AuthzBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// DecisionsTotal counts authorization outcomes: permitted,
	// challenged, forbidden, or failed.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_authz_decisions_total",
			Help: "Authorization decisions",
		},
		[]string{"outcome"},
	)

	// DecisionDuration records time from gate entry to decision.
	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_authz_duration_seconds",
			Help:    "Authorization decision latency",
			Buckets: AuthzBuckets,
		},
		[]string{"outcome"},
	)

	// PolicyChecksTotal counts individual policy checks by policy name
	// and result (permitted, denied, error).
	PolicyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_policy_checks_total",
			Help: "Policy checks",
		},
		[]string{"policy", "result"},
	)

	// ChallengesSentTotal counts authentication challenges written.
	ChallengesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_challenges_sent_total",
			Help: "Authentication challenges sent",
		},
	)

	// IdentityResolutionsTotal counts identity resolutions by result
	// (ok, anonymous, failed).
	IdentityResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_identity_resolutions_total",
			Help: "Identity resolutions",
		},
		[]string{"result"},
	)

	// DispatchInflight tracks blocking policy callbacks currently
	// running on the dispatch pool.
	DispatchInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatehouse_dispatch_inflight",
			Help: "Blocking callbacks in flight on the dispatch pool",
		},
	)

	// DispatchRejectedTotal counts submissions rejected by a saturated
	// dispatch pool.
	DispatchRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_dispatch_rejected_total",
			Help: "Dispatch pool rejections",
		},
	)

	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_http_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthzBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal,
		DecisionDuration,
		PolicyChecksTotal,
		ChallengesSentTotal,
		IdentityResolutionsTotal,
		DispatchInflight,
		DispatchRejectedTotal,
		RequestsTotal,
		RequestDuration,
	)
}
