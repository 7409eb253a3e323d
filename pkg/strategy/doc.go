// Package strategy implements the per-class request strategies of the edge worker.
//
//   - Image: cache-first. Network responses are written to the images
//     partition after the eviction policy has made room.
//   - Static: cache-first. Network responses are written to the static partition.
//   - Dynamic: network-first. Network responses always overwrite the general
//     partition.
//
// All lookups use the aggregate search across every partition. When the
// network or the storage fails, a strategy falls back to the aggregate
// lookup and finally to a synthetic response:
//
//   - image:   404 "Image not found" with an empty body
//   - static:  503 "Asset not available offline"
//   - dynamic: 503 JSON {"error":"offline","message":"Content not available offline"}
//
// Storage and network failures produce the same response; they are told
// apart only in logs and in worker_strategy_failures_total{kind}.
//
// Every response carries an X-Cache-Source header of cache, network or offline.
//
// # Metrics
//
//   - worker_requests_total{class, source} - Responses served by class and source
//   - worker_strategy_failures_total{class, kind} - Fallbacks by failure kind
//   - worker_cache_evictions_total{partition} - Entries removed by the eviction policy
//   - worker_strategy_duration_seconds{class} - Time spent in a strategy
package strategy
