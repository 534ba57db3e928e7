package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Name-service lookup outcomes.
const (
	LookupFound   = "found"
	LookupEmpty   = "empty"
	LookupError   = "error"
	LookupTimeout = "timeout"
)

// Channel discovery outcomes.
const (
	DiscoveryFound  = "found"
	DiscoveryNone   = "none"
	DiscoveryFailed = "failed"
)

var (
	// NameServiceLookups tracks name-service lookups per provider and outcome
	NameServiceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_send_nameservice_lookups_total",
			Help: "Total number of name-service lookups",
		},
		[]string{"provider", "outcome"},
	)

	// NameServiceLatency tracks provider latency
	NameServiceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spectra_send_nameservice_latency_seconds",
			Help:    "Name-service lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ChannelDiscoveries tracks default-channel lookups per outcome
	ChannelDiscoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_send_channel_discoveries_total",
			Help: "Total number of IBC default channel lookups",
		},
		[]string{"outcome"},
	)

	// CustomChannelsAdded tracks custom channel additions, rejected duplicates included
	CustomChannelsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_send_custom_channels_added_total",
			Help: "Total number of custom channel additions",
		},
		[]string{"result"},
	)

	// GuardEvaluations tracks feasibility guard verdicts
	GuardEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_send_guard_evaluations_total",
			Help: "Total number of transfer feasibility evaluations",
		},
		[]string{"verdict"},
	)
)
