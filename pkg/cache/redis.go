package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key layout.
//
//	worker:partitions                  ZSET  partition name -> creation sequence
//	worker:partitions:seq              STRING creation sequence counter
//	worker:partition:{name}:entries    HASH  key -> JSON Entry
//	worker:partition:{name}:order      ZSET  key -> insertion sequence
//	worker:partition:{name}:seq        STRING insertion sequence counter
const (
	RedisKeyPartitions   = "worker:partitions"
	RedisKeyPartitionSeq = "worker:partitions:seq"
)

func redisEntriesKey(name string) string { return "worker:partition:{" + name + "}:entries" }
func redisOrderKey(name string) string   { return "worker:partition:{" + name + "}:order" }
func redisSeqKey(name string) string     { return "worker:partition:{" + name + "}:seq" }

// RedisStorage is a Storage backed by Redis.
type RedisStorage struct {
	redis *redis.Client
}

// NewRedisStorage creates a new Redis-backed storage.
func NewRedisStorage(redisClient *redis.Client) *RedisStorage {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStorage{
		redis: redisClient,
	}
}

// Partitions returns partition names in creation order.
func (s *RedisStorage) Partitions(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, RedisKeyPartitions, 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("partitions").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// Open registers the partition on first use and returns a handle to it.
func (s *RedisStorage) Open(ctx context.Context, name string) (Partition, error) {
	if name == "" {
		return nil, fmt.Errorf("partition name cannot be empty")
	}

	_, err := s.redis.ZScore(ctx, RedisKeyPartitions, name).Result()
	switch {
	case err == nil:
		return &redisPartition{redis: s.redis, name: name}, nil
	case !errors.Is(err, redis.Nil):
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis zscore: %w", err)
	}

	seq, err := s.redis.Incr(ctx, RedisKeyPartitionSeq).Result()
	if err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis incr: %w", err)
	}

	// NX keeps the original creation order if another worker won the race
	if err := s.redis.ZAddNX(ctx, RedisKeyPartitions, redis.Z{Score: float64(seq), Member: name}).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis zadd: %w", err)
	}

	return &redisPartition{redis: s.redis, name: name}, nil
}

// Delete removes a partition and all of its entries in one transaction.
func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, RedisKeyPartitions, name)
		pipe.Del(ctx, redisEntriesKey(name), redisOrderKey(name), redisSeqKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis delete partition: %w", err)
	}
	return removed.Val() > 0, nil
}

// Match searches all partitions in creation order with a single round trip.
func (s *RedisStorage) Match(ctx context.Context, key string) (*Entry, error) {
	names, err := s.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cmds := make([]*redis.StringCmd, len(names))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGet(ctx, redisEntriesKey(name), key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			CacheErrors.WithLabelValues("match").Inc()
			return nil, fmt.Errorf("redis hget: %w", err)
		}
		entry, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		CacheHits.WithLabelValues(names[i]).Inc()
		return entry, nil
	}

	CacheMisses.Inc()
	return nil, ErrCacheMiss
}

type redisPartition struct {
	redis *redis.Client
	name  string
}

func (p *redisPartition) Name() string { return p.name }

func (p *redisPartition) Match(ctx context.Context, key string) (*Entry, error) {
	data, err := p.redis.HGet(ctx, redisEntriesKey(p.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return decodeEntry(data)
}

func (p *redisPartition) Put(ctx context.Context, key string, entry *Entry) error {
	return p.PutAll(ctx, []Item{{Key: key, Entry: entry}})
}

// PutAll writes every item inside one MULTI/EXEC block. A re-written key gets
// a new insertion sequence, which moves it to the end of Keys.
func (p *redisPartition) PutAll(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	encoded := make([][]byte, len(items))
	for i, it := range items {
		if err := validateEntry(it.Entry); err != nil {
			CacheErrors.WithLabelValues("put").Inc()
			return fmt.Errorf("put %s: %w", it.Key, err)
		}
		data, err := json.Marshal(it.Entry)
		if err != nil {
			CacheErrors.WithLabelValues("put").Inc()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		encoded[i] = data
	}

	last, err := p.redis.IncrBy(ctx, redisSeqKey(p.name), int64(len(items))).Result()
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis incrby: %w", err)
	}
	first := last - int64(len(items)) + 1

	_, err = p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, it := range items {
			pipe.HSet(ctx, redisEntriesKey(p.name), it.Key, encoded[i])
			pipe.ZAdd(ctx, redisOrderKey(p.name), redis.Z{Score: float64(first + int64(i)), Member: it.Key})
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}

	CacheWrites.WithLabelValues(p.name).Add(float64(len(items)))
	return nil
}

func (p *redisPartition) Delete(ctx context.Context, key string) (bool, error) {
	var removed *redis.IntCmd
	_, err := p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, redisEntriesKey(p.name), key)
		pipe.ZRem(ctx, redisOrderKey(p.name), key)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis del: %w", err)
	}
	return removed.Val() > 0, nil
}

func (p *redisPartition) Keys(ctx context.Context) ([]string, error) {
	keys, err := p.redis.ZRange(ctx, redisOrderKey(p.name), 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return keys, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}
