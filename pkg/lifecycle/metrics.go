package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_lifecycle_transitions_total",
			Help: "Total lifecycle state transitions by target state",
		},
		[]string{"state"},
	)

	installDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_install_duration_seconds",
			Help:    "Duration of install including pre-warm",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	partitionsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_partitions_deleted_total",
			Help: "Total stale cache partitions deleted at activation",
		},
	)
)
