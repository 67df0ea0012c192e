package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	adminRequestsTotal          *prometheus.CounterVec
	adminLatencySeconds         *prometheus.HistogramVec
	adminErrorsTotal            *prometheus.CounterVec
	authorizationDecisionsTotal *prometheus.CounterVec
	authorityDecisionsTotal     *prometheus.CounterVec
	mutationsTotal              *prometheus.CounterVec
	matrixCacheTotal            *prometheus.CounterVec
	resolverLatencySeconds      *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of access-control API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for access-control API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by access-control endpoints.",
		}, []string{"method", "route", "status"})

		authorizationDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbac_authorization_decisions_total",
			Help: "Authorize calls by module, action and result.",
		}, []string{"module", "action", "result"})

		authorityDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbac_authority_decisions_total",
			Help: "Authority hierarchy decisions by operation and result.",
		}, []string{"operation", "result"})

		mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbac_mutations_total",
			Help: "Role and permission mutations by operation and result.",
		}, []string{"operation", "result"})

		matrixCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbac_matrix_cache_total",
			Help: "Role permission matrix cache lookups by outcome.",
		}, []string{"outcome"})

		resolverLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rbac_resolver_latency_seconds",
			Help:    "Latency of permission resolution queries.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"query"})

		prometheus.MustRegister(
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
			authorizationDecisionsTotal,
			authorityDecisionsTotal,
			mutationsTotal,
			matrixCacheTotal,
			resolverLatencySeconds,
		)
	})
}

// AdminRequests exposes the counter for API requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for API requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for API error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// AuthorizationDecisions exposes the Authorize outcome counter.
func AuthorizationDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return authorizationDecisionsTotal
}

// AuthorityDecisions exposes the authority hierarchy outcome counter.
func AuthorityDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return authorityDecisionsTotal
}

// Mutations exposes the mutation outcome counter.
func Mutations() *prometheus.CounterVec {
	RegisterMetrics()
	return mutationsTotal
}

// MatrixCache exposes the matrix cache hit/miss counter.
func MatrixCache() *prometheus.CounterVec {
	RegisterMetrics()
	return matrixCacheTotal
}

// ResolverLatency exposes the resolver latency histogram.
func ResolverLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return resolverLatencySeconds
}
