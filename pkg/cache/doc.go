// Package cache provides the partitioned response store used by the edge worker.
//
// Storage holds named, versioned partitions. Each partition maps a request key
// (the URL path plus query) to an immutable Entry snapshot of a successful
// response. Two implementations exist:
//
//   - MemoryStorage, used for development and tests
//   - RedisStorage, used in production so that cache contents survive worker restarts
//
// # Basic Usage
//
//	storage := cache.NewRedisStorage(redisClient)
//
//	// Open (and lazily create) a partition
//	images, err := storage.Open(ctx, "portfolio-images-v2.0.0")
//
//	// Snapshot a network response and persist it
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := images.Put(ctx, cache.KeyFor(req), entry); err != nil {
//		return err
//	}
//
//	// Aggregate lookup across every partition
//	entry, err = storage.Match(ctx, cache.KeyFor(req))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// not cached anywhere
//	}
//
// # Ordering
//
// Partitions enumerate in creation order and keys enumerate in insertion
// order. Overwriting a key is a delete followed by an insert, so the key moves
// to the end of the enumeration. Eviction relies on this to trim the oldest
// entries first.
//
// # Metrics
//
//   - worker_cache_hits_total{partition} - Aggregate lookups answered by a partition
//   - worker_cache_misses_total - Aggregate lookups with no entry
//   - worker_cache_writes_total{partition} - Entries written
//   - worker_cache_errors_total{operation} - Storage operation errors
package cache
