package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage is an in-process Storage. Its contents do not survive a restart.
type MemoryStorage struct {
	mu         sync.RWMutex
	order      []string
	partitions map[string]*memoryPartition
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		partitions: make(map[string]*memoryPartition),
	}
}

// Partitions returns partition names in creation order.
func (s *MemoryStorage) Partitions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Open returns the named partition, creating it on first use.
func (s *MemoryStorage) Open(ctx context.Context, name string) (Partition, error) {
	if name == "" {
		return nil, fmt.Errorf("partition name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[name]; ok {
		return p, nil
	}
	p := &memoryPartition{
		name:    name,
		entries: make(map[string]*Entry),
	}
	s.partitions[name] = p
	s.order = append(s.order, name)
	return p, nil
}

// Delete removes a partition. Handles opened earlier keep working but are
// detached from the storage.
func (s *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[name]; !ok {
		return false, nil
	}
	delete(s.partitions, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Match searches all partitions in creation order.
func (s *MemoryStorage) Match(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	parts := make([]*memoryPartition, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, s.partitions[name])
	}
	s.mu.RUnlock()

	for _, p := range parts {
		entry, err := p.Match(ctx, key)
		if err == nil {
			CacheHits.WithLabelValues(p.name).Inc()
			return entry, nil
		}
	}
	CacheMisses.Inc()
	return nil, ErrCacheMiss
}

type memoryPartition struct {
	name    string
	mu      sync.RWMutex
	keys    []string
	entries map[string]*Entry
}

func (p *memoryPartition) Name() string { return p.name }

func (p *memoryPartition) Match(ctx context.Context, key string) (*Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry.Clone(), nil
}

func (p *memoryPartition) Put(ctx context.Context, key string, entry *Entry) error {
	return p.PutAll(ctx, []Item{{Key: key, Entry: entry}})
}

func (p *memoryPartition) PutAll(ctx context.Context, items []Item) error {
	for _, it := range items {
		if err := validateEntry(it.Entry); err != nil {
			CacheErrors.WithLabelValues("put").Inc()
			return fmt.Errorf("put %s: %w", it.Key, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, it := range items {
		p.removeLocked(it.Key)
		p.entries[it.Key] = it.Entry.Clone()
		p.keys = append(p.keys, it.Key)
		CacheWrites.WithLabelValues(p.name).Inc()
	}
	return nil
}

func (p *memoryPartition) Delete(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(key), nil
}

func (p *memoryPartition) Keys(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.keys...), nil
}

func (p *memoryPartition) removeLocked(key string) bool {
	if _, ok := p.entries[key]; !ok {
		return false
	}
	delete(p.entries, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}
