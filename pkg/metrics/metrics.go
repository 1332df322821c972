package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "worldgate"

var (
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_total",
		Help:      "Total number of accepted client connections.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Number of open client connections.",
	})

	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_received_total",
		Help:      "Inbound records by packet name.",
	}, []string{"name"})

	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_sent_total",
		Help:      "Outbound records by packet name.",
	}, []string{"name"})

	ConnectionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_closed_total",
		Help:      "Closed connections by reason.",
	}, []string{"reason"})

	SpawnResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_results_total",
		Help:      "Select user outcomes: spawned, rejected, reverted or cancelled.",
	}, []string{"result"})

	LocalWorlds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "local_worlds",
		Help:      "Number of registered local worlds.",
	})

	LocalWorldTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "local_world_tick_seconds",
		Help:      "Time spent in one local world tick.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_errors_total",
		Help:      "Failed persistence requests by request type.",
	}, []string{"request"})
)
