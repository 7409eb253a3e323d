package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks aggregate lookups answered, by partition
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_cache_hits_total",
			Help: "Total number of aggregate cache lookups answered from a partition",
		},
		[]string{"partition"},
	)

	// CacheMisses tracks aggregate lookups that found nothing
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_cache_misses_total",
			Help: "Total number of aggregate cache lookups with no entry",
		},
	)

	// CacheWrites tracks entries written, by partition
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_cache_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"partition"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "match", "put", "delete", "keys", "partitions"
	)
)
