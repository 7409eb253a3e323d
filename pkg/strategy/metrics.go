package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_requests_total",
			Help: "Total intercepted requests by traffic class and response source",
		},
		[]string{"class", "source"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_strategy_failures_total",
			Help: "Total strategy fallbacks by traffic class and failure kind",
		},
		[]string{"class", "kind"}, // kind: "network", "timeout", "storage", "unknown"
	)

	evictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_cache_evictions_total",
			Help: "Total cache entries removed by the eviction policy",
		},
		[]string{"partition"},
	)

	strategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_strategy_duration_seconds",
			Help:    "Time spent handling an intercepted request",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"class"},
	)
)
