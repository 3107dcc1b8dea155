// Package metrics holds the Prometheus collectors of the bot and the HTTP
// endpoint that exposes them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Updates counts inbound Telegram updates by event kind.
	Updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshop_updates_total",
			Help: "Inbound updates by event kind",
		},
		[]string{"kind"},
	)
	// RateLimited counts updates dropped by the rate limiter.
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshop_updates_rate_limited_total",
			Help: "Updates rejected by the per-user rate limiter",
		},
		[]string{"kind"},
	)
	// FlowRoutes counts dispatcher decisions by flow and route.
	FlowRoutes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshop_flow_routes_total",
			Help: "Dispatcher routes taken by flow",
		},
		[]string{"flow", "route"},
	)
	// Deliveries counts outbound effects by kind and status.
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshop_deliveries_total",
			Help: "Outbound deliveries by effect kind and status",
		},
		[]string{"kind", "status"},
	)
	// Digests counts scheduled pending-approval digests.
	Digests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshop_digest_runs_total",
			Help: "Pending-approval digest runs by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(Updates)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(FlowRoutes)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(Digests)
}
