package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChallengeTransitions counts lifecycle transitions by target state
	// (active|completed|expired).
	ChallengeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cravequest_challenge_transitions_total",
			Help: "Total number of challenge state transitions",
		},
		[]string{"state"},
	)

	// MatchesCreated counts matches produced by the pairing engine.
	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cravequest_matches_created_total",
			Help: "Total number of matchmaking pairings",
		},
	)

	// QueueWaiting tracks queue entries currently in the waiting state.
	QueueWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cravequest_queue_waiting",
			Help: "Number of waiting matchmaking queue entries",
		},
	)

	// GeneratorFallbacks counts external generator calls that fell back to
	// the local deterministic output (kind: calories|challenges).
	GeneratorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cravequest_generator_fallbacks_total",
			Help: "Total number of generator fallbacks",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cravequest_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
