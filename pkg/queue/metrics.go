package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueuePushed tracks requests queued after a failed dispatch
	QueuePushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_queue_pushed_total",
			Help: "Total number of failed requests queued for replay",
		},
		[]string{"queue"},
	)

	// QueueReplayed tracks replay attempts by outcome
	QueueReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_queue_replayed_total",
			Help: "Total number of queued requests replayed by outcome",
		},
		[]string{"queue", "outcome"}, // "success", "failure"
	)

	// QueueDropped tracks entries dropped for exceeding the retention period
	QueueDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_queue_dropped_total",
			Help: "Total number of queued requests dropped after the retention period",
		},
		[]string{"queue"},
	)

	// QueueErrors tracks Redis operation errors
	QueueErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_queue_errors_total",
			Help: "Total number of queue storage errors",
		},
		[]string{"operation"}, // "push", "shift", "unshift", "size"
	)
)
