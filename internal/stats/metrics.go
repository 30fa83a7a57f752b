package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Definition
var (
	eventsAggregated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineagelens_events_aggregated_total",
			Help: "Total number of stat records merged into window buckets.",
		},
		[]string{"feed_name"},
	)
	unattributableEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lineagelens_events_unattributable_total",
			Help: "Total number of events dropped because no feed name could be resolved.",
		},
	)
	staleWindowDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lineagelens_stale_window_drops_total",
			Help: "Total number of records dropped because their window was already flushed.",
		},
	)
	completionRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lineagelens_completion_records_total",
			Help: "Total number of synthetic job-completion records produced by the completion walk.",
		},
	)
	windowsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lineagelens_windows_flushed_total",
			Help: "Total number of windows removed from the store and handed to the transport.",
		},
	)
	dispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lineagelens_dispatch_failures_total",
			Help: "Total number of window dispatches the downstream transport rejected.",
		},
	)
)
