// Package metrics exposes prometheus collectors for the storefront.
package metrics

import (
	"net/http"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Collector records auth service calls, flow outcomes and throttled requests.
type Collector struct {
	authRequests *prometheus.CounterVec
	authLatency  *prometheus.HistogramVec
	flowOutcomes *prometheus.CounterVec
	flowLatency  *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec
}

// NewCollector builds the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Calls to the auth service by operation and outcome.",
		}, []string{"operation", "outcome"}),
		authLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_request_duration_seconds",
			Help:      "Latency of auth service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		flowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_outcomes_total",
			Help:      "Finished page flow steps by flow and resulting state.",
		}, []string{"flow", "state"}),
		flowLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Duration of page flow steps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per client rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.authRequests,
		c.authLatency,
		c.flowOutcomes,
		c.flowLatency,
		c.rateLimited,
	)
	return c
}

// ObserveRequest records one auth service call. An empty kind is a success.
func (c *Collector) ObserveRequest(operation string, kind storefront.Kind, elapsed time.Duration) {
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	c.authRequests.WithLabelValues(operation, outcome).Inc()
	c.authLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveFlow records one finished flow step.
func (c *Collector) ObserveFlow(name flow.Name, state flow.State, elapsed time.Duration) {
	c.flowOutcomes.WithLabelValues(string(name), string(state)).Inc()
	c.flowLatency.WithLabelValues(string(name)).Observe(elapsed.Seconds())
}

// RateLimited counts a throttled request.
func (c *Collector) RateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the registry in the prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
