package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "roster"
)

var (
	// CommandsIssued counts commands accepted by a dispatcher
	CommandsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_issued_total",
			Help:      "Total number of commands accepted for transmission",
		},
		[]string{"op"},
	)

	// CommandsRejected counts commands refused before a version bump
	CommandsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Total number of commands rejected by validation or permission checks",
		},
		[]string{"op", "reason"}, // reason: permission/target/region/team/value/unknown/transport
	)

	// CommandsApplied counts commands executed by an authority
	CommandsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_applied_total",
			Help:      "Total number of commands applied by the authority",
		},
		[]string{"op", "status"}, // status: ok/error
	)

	// CommandsDuplicate counts deliveries dropped by the version guard
	CommandsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_duplicate_total",
			Help:      "Total number of stale or duplicate command deliveries ignored",
		},
	)

	// ShuffleSize observes how many entries each shuffle assigned
	ShuffleSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shuffle_assignments",
			Help:      "Number of team assignments produced per shuffle",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128},
		},
	)

	// TeleportsFired counts teleport broadcasts that reached participants
	TeleportsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teleports_fired_total",
			Help:      "Total number of post-shuffle teleport broadcasts",
		},
		[]string{"variant"}, // all/non_moderators
	)

	// SessionsActive tracks sessions held by the hub
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions",
		},
	)

	// ParticipantsConnected tracks open participant connections
	ParticipantsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants_connected",
			Help:      "Number of connected participant sockets",
		},
	)
)

func RecordIssued(op string) {
	CommandsIssued.WithLabelValues(op).Inc()
}

func RecordRejected(op, reason string) {
	CommandsRejected.WithLabelValues(op, reason).Inc()
}

func RecordApplied(op string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	CommandsApplied.WithLabelValues(op, status).Inc()
}

func RecordDuplicate() {
	CommandsDuplicate.Inc()
}

func RecordShuffle(assigned int) {
	ShuffleSize.Observe(float64(assigned))
}

func RecordTeleport(includeModerators bool) {
	variant := "non_moderators"
	if includeModerators {
		variant = "all"
	}
	TeleportsFired.WithLabelValues(variant).Inc()
}

func RecordConnection(delta int) {
	ParticipantsConnected.Add(float64(delta))
}
