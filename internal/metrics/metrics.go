// Package metrics exposes the Prometheus collectors that watch the
// transaction state machine and service dispatcher: slot occupancy,
// retry counts, and per-service-choice throughput, registered against
// caller-supplied registries the way a client_golang-instrumented
// agent wires its own collectors rather than relying on the global
// default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the stack touches. The zero value
// is not usable; build one with New.
type Metrics struct {
	SlotsInUse       prometheus.Gauge
	SlotsFree        prometheus.Gauge
	Retransmissions  prometheus.Counter
	TransactionsDone *prometheus.CounterVec // label "outcome": complete|errored|rejected|aborted|timeout
	ServiceRequests  *prometheus.CounterVec // label "service"
	SegmentsSent     prometheus.Counter
	SegmentsReceived prometheus.Counter
	CovNotifications prometheus.Counter
}

// New constructs a Metrics bundle and registers every collector
// against reg. Passing prometheus.NewRegistry() keeps tests isolated
// from the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bacstack",
			Subsystem: "tsm",
			Name:      "slots_in_use",
			Help:      "Number of transaction state machine invoke-ID slots currently allocated.",
		}),
		SlotsFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bacstack",
			Subsystem: "tsm",
			Name:      "slots_free",
			Help:      "Number of transaction state machine invoke-ID slots currently available.",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "tsm",
			Name:      "retransmissions_total",
			Help:      "Number of confirmed-request retransmissions issued by the transaction state machine.",
		}),
		TransactionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "tsm",
			Name:      "transactions_total",
			Help:      "Number of transactions that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		ServiceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "dispatch",
			Name:      "service_requests_total",
			Help:      "Number of requests handled by the service dispatcher, by service choice.",
		}, []string{"service"}),
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "segmentation",
			Name:      "segments_sent_total",
			Help:      "Number of APDU segments transmitted.",
		}),
		SegmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "segmentation",
			Name:      "segments_received_total",
			Help:      "Number of APDU segments received.",
		}),
		CovNotifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bacstack",
			Subsystem: "cov",
			Name:      "notifications_total",
			Help:      "Number of change-of-value notifications delivered to a handler or subscriber channel.",
		}),
	}

	reg.MustRegister(
		m.SlotsInUse,
		m.SlotsFree,
		m.Retransmissions,
		m.TransactionsDone,
		m.ServiceRequests,
		m.SegmentsSent,
		m.SegmentsReceived,
		m.CovNotifications,
	)
	return m
}

// Nop returns a Metrics bundle registered against a private registry,
// for components that were not handed one explicitly.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
