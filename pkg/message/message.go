// Package message implements the client to worker message protocol.
//
// Messages are JSON objects tagged by a "type" field:
//
//	{"type": "SKIP_WAITING"}  activate a waiting worker now
//	{"type": "CACHE_STATS"}   reply with {partitionName: entryCount}
package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/edge-worker/pkg/cache"
)

// ErrUnknownType is returned for messages with a missing or unsupported type.
var ErrUnknownType = errors.New("unknown message type")

// Message type tags.
const (
	TypeSkipWaiting = "SKIP_WAITING"
	TypeCacheStats  = "CACHE_STATS"
)

// Message is one of SkipWaiting or CacheStats.
type Message interface {
	// Type returns the wire tag of the message.
	Type() string

	isMessage()
}

// SkipWaiting asks a waiting worker to activate immediately.
type SkipWaiting struct{}

// Type returns TypeSkipWaiting.
func (SkipWaiting) Type() string { return TypeSkipWaiting }
func (SkipWaiting) isMessage()   {}

// CacheStats asks for the entry count of every partition.
type CacheStats struct{}

// Type returns TypeCacheStats.
func (CacheStats) Type() string { return TypeCacheStats }
func (CacheStats) isMessage()   {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a tagged message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case TypeSkipWaiting:
		return SkipWaiting{}, nil
	case TypeCacheStats:
		return CacheStats{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Stats counts the entries of every partition. A failure on any partition
// fails the whole reply.
func Stats(ctx context.Context, storage cache.Storage) (map[string]int, error) {
	names, err := storage.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	stats := make(map[string]int, len(names))
	for _, name := range names {
		p, err := storage.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		keys, err := p.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		stats[name] = len(keys)
	}
	return stats, nil
}
