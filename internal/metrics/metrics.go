// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourcePacketsTotal counts packets read from a source
	SourcePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_source_packets_total",
			Help: "Total number of packets read from a packet source",
		},
		[]string{"source"},
	)

	// LaneQueueDropsTotal counts packets dropped because a lane queue was full
	LaneQueueDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_lane_queue_drops_total",
			Help: "Total number of packets dropped before reaching a lane",
		},
		[]string{"lane"},
	)

	// InvocationsTotal counts program invocations by verdict
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_invocations_total",
			Help: "Total number of program invocations by resulting action",
		},
		[]string{"lane", "action"},
	)

	// InvocationLatencySeconds measures one program invocation
	InvocationLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xdpwalk_invocation_latency_seconds",
			Help:    "Latency of a single program invocation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
		[]string{"lane"},
	)

	// EventsEmittedTotal counts events accepted by the event channel
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_events_emitted_total",
			Help: "Total number of events accepted by the event channel",
		},
		[]string{"program"},
	)

	// EventsLostTotal counts events rejected by the event channel
	EventsLostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_events_lost_total",
			Help: "Total number of events rejected by the event channel",
		},
		[]string{"program", "reason"},
	)

	// EventsReportedTotal counts events handed to a reporter
	EventsReportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_events_reported_total",
			Help: "Total number of events successfully reported",
		},
		[]string{"reporter"},
	)

	// ReporterErrorsTotal counts reporter errors by name
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdpwalk_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
