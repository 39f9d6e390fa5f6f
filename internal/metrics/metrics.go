// Package metrics exposes the gateway's prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts forwarded operations by name and outcome
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_requests_total",
		Help: "Total number of operations forwarded to the upstream, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// UpstreamDuration tracks the latency of upstream calls
	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_upstream_request_duration_seconds",
		Help:    "Duration of upstream calls, including retried attempts.",
		Buckets: prometheus.DefBuckets,
	})

	// Logins counts upstream login attempts by outcome
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_logins_total",
		Help: "Total number of upstream login attempts, by outcome.",
	}, []string{"outcome"})

	// SocketDisconnects counts teardowns of the upstream socket connection
	SocketDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_upstream_socket_disconnects_total",
		Help: "Total number of times the upstream socket connection was torn down.",
	})

	// RateLimited counts inbound requests rejected by the rate limiter
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limited_requests_total",
		Help: "Total number of inbound requests rejected by the rate limiter.",
	})
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
