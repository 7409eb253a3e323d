package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable indicates a response that must never be stored
	ErrNotCacheable = errors.New("response not cacheable")
)

// Storage is the set of named cache partitions.
//
// Implementations must be safe for concurrent use. Single-entry reads, writes
// and deletes are atomic; deleting a partition removes it in full or not at all.
type Storage interface {
	// Partitions returns every partition name in creation order.
	Partitions(ctx context.Context) ([]string, error)

	// Open returns the named partition, creating it if it does not exist.
	Open(ctx context.Context, name string) (Partition, error)

	// Delete removes a whole partition. It reports whether the partition existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Match looks a key up across all partitions in creation order and
	// returns the first entry found, or ErrCacheMiss.
	Match(ctx context.Context, key string) (*Entry, error)
}

// Partition is a single named store of key -> Entry pairs.
type Partition interface {
	// Name returns the versioned partition name.
	Name() string

	// Match returns the entry stored under key, or ErrCacheMiss.
	Match(ctx context.Context, key string) (*Entry, error)

	// Put stores entry under key, replacing (and re-ordering) any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error

	// PutAll stores all entries in order, or none of them.
	PutAll(ctx context.Context, items []Item) error

	// Delete removes key. It reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys returns all keys in insertion order.
	Keys(ctx context.Context) ([]string, error)
}

// Item is a key/entry pair for bulk writes.
type Item struct {
	Key   string
	Entry *Entry
}

func validateEntry(entry *Entry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	if !entry.OK() {
		return ErrNotCacheable
	}
	return nil
}
