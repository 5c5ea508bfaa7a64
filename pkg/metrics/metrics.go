// Package metrics ties together the Prometheus metrics of the fetch packages.
// The metrics themselves are defined next to the code that records them
// (fetch, ratelimit, queue) to keep packages independent.
//
// This package provides the registry, the scrape handler and a reference of
// all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all fetch metrics use.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Orchestrator Metrics (pkg/fetch):
//   - fetch_dispatches_total{outcome} (Counter): Transport dispatches by outcome (success, failure)
//   - fetch_dispatch_duration_seconds (Histogram): Transport dispatch duration
//   - fetch_hook_invocations_total{hook} (Counter): Plugin hook invocations
//   - fetch_plugin_errors_total{hook} (Counter): Errors raised by plugin hooks
//   - fetch_invalid_requests_total (Counter): Inputs that could not be turned into a request
//
// Rate Limit Metrics (pkg/ratelimit):
//   - fetch_rate_limit_remaining (Gauge): Requests remaining in the upstream window
//   - fetch_rate_limit_blocks_total (Counter): Requests blocked by the gate
//   - fetch_rate_limit_throttles_total (Counter): Requests delayed by the gate
//
// Queue Metrics (pkg/queue):
//   - fetch_queue_pushed_total{queue} (Counter): Failed requests queued
//   - fetch_queue_replayed_total{queue, outcome} (Counter): Replay attempts by outcome
//   - fetch_queue_dropped_total{queue} (Counter): Entries dropped after the retention period
//   - fetch_queue_errors_total{operation} (Counter): Redis errors by queue operation
//
// Example Prometheus Queries:
//
//   # Dispatch Failure Rate
//   sum(rate(fetch_dispatches_total{outcome="failure"}[5m])) /
//   sum(rate(fetch_dispatches_total[5m]))
//
//   # Requests rejected by plugins
//   rate(fetch_plugin_errors_total{hook="requestWillFetch"}[5m])
//
//   # P95 Dispatch Latency
//   histogram_quantile(0.95, rate(fetch_dispatch_duration_seconds_bucket[5m]))
//
//   # Queue Backlog Growth
//   sum(rate(fetch_queue_pushed_total[1h])) - sum(rate(fetch_queue_replayed_total{outcome="success"}[1h]))
