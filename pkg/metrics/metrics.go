// Package metrics provides the Prometheus registry and scrape handler for the edge worker.
// All metrics are defined in their respective packages (cache, origin, strategy,
// lifecycle, outbox) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the edge worker.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/strategy):
//   - worker_requests_total{class, source} (Counter): Intercepted requests by class and response source (cache, network, offline)
//   - worker_strategy_duration_seconds{class} (Histogram): Strategy duration by request class
//   - worker_strategy_failures_total{class, kind} (Counter): Strategy failures by kind (network, timeout, storage, unknown)
//   - worker_cache_evictions_total{partition} (Counter): Entries removed by FIFO eviction
//
// Cache Metrics (pkg/cache):
//   - worker_cache_hits_total{partition} (Counter): Aggregate lookups answered by a partition
//   - worker_cache_misses_total (Counter): Aggregate lookups with no entry
//   - worker_cache_writes_total{partition} (Counter): Entries written
//   - worker_cache_errors_total{operation} (Counter): Storage operation errors
//
// Origin Metrics (pkg/origin):
//   - worker_origin_requests_total{method, status} (Counter): Origin fetches by method and HTTP status
//   - worker_origin_request_duration_seconds{method} (Histogram): Origin fetch duration
//   - worker_origin_errors_total{class} (Counter): Origin failures by class
//   - worker_origin_retries_total (Counter): Retry attempts
//   - worker_origin_retry_backoff_seconds (Histogram): Backoff duration
//   - worker_origin_retry_exhausted_total (Counter): Operations that exhausted max retries
//
// Lifecycle Metrics (pkg/lifecycle):
//   - worker_lifecycle_transitions_total{state} (Counter): State transitions by target state
//   - worker_install_duration_seconds (Histogram): Successful install duration
//   - worker_partitions_deleted_total (Counter): Stale partitions deleted at activation
//
// Outbox Metrics (pkg/outbox):
//   - worker_outbox_pending (Gauge): Submissions waiting for replay
//   - worker_outbox_replays_total{outcome} (Counter): Replay attempts by outcome (delivered, failed)
//
// Example Prometheus Queries:
//
//   # Offline Fallback Rate
//   sum(rate(worker_requests_total{source="offline"}[5m])) / sum(rate(worker_requests_total[5m]))
//
//   # Image Cache Hit Rate
//   sum(rate(worker_requests_total{class="image",source="cache"}[5m])) /
//   sum(rate(worker_requests_total{class="image"}[5m]))
//
//   # Eviction Rate
//   rate(worker_cache_evictions_total[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(worker_origin_request_duration_seconds_bucket[5m]))
//
//   # Stuck Outbox
//   worker_outbox_pending > 0 and rate(worker_outbox_replays_total{outcome="delivered"}[30m]) == 0
