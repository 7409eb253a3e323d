package strategy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/edge-worker/pkg/cache"
)

// Eviction bounds the number of entries in a partition.
type Eviction struct {
	// MaxEntries is the entry limit. Zero disables eviction.
	MaxEntries int

	// Headroom is the number of free slots left after a trim, so that the
	// next inserts do not trim again.
	Headroom int
}

// DefaultEviction returns the image partition policy: 100 entries, 10 slots headroom.
func DefaultEviction() Eviction {
	return Eviction{MaxEntries: 100, Headroom: 10}
}

// Trim makes room for one insert. When the partition holds MaxEntries or
// more keys, the oldest keys are deleted concurrently until
// MaxEntries-Headroom remain, and Trim waits for every deletion.
// It returns the number of deleted keys.
func (e Eviction) Trim(ctx context.Context, p cache.Partition) (int, error) {
	if e.MaxEntries <= 0 {
		return 0, nil
	}

	keys, err := p.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) < e.MaxEntries {
		return 0, nil
	}

	batch := len(keys) - e.MaxEntries + e.Headroom
	if batch > len(keys) {
		batch = len(keys)
	}
	if batch <= 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys[:batch] {
		g.Go(func() error {
			if _, err := p.Delete(gctx, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	evictionsTotal.WithLabelValues(p.Name()).Add(float64(batch))
	log.Debug().
		Str("partition", p.Name()).
		Int("entries", len(keys)).
		Int("max_entries", e.MaxEntries).
		Int("evicted", batch).
		Msg("Cache size limit reached, evicted oldest entries")

	return batch, nil
}
