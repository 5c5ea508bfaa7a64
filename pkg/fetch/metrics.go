package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hook labels used by the metrics below.
const (
	hookRequestWillFetch = "requestWillFetch"
	hookFetchDidFail     = "fetchDidFail"
)

// Prometheus metrics for fetch orchestration.
var (
	fetchDispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_dispatches_total",
		Help: "Total network dispatches by outcome",
	}, []string{"outcome"})

	fetchDispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_dispatch_duration_seconds",
		Help:    "Network dispatch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	fetchHookInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_hook_invocations_total",
		Help: "Total plugin hook invocations by hook",
	}, []string{"hook"})

	fetchPluginErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_plugin_errors_total",
		Help: "Total errors returned by plugin hooks by hook",
	}, []string{"hook"})

	fetchInvalidRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_invalid_requests_total",
		Help: "Total fetch calls rejected because the request could not be built",
	})
)
