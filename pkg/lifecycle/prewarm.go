package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/edge-worker/pkg/cache"
)

// PrewarmConfig holds pre-warm configuration.
type PrewarmConfig struct {
	// MaxConcurrency is the maximum number of parallel asset fetches
	MaxConcurrency int
}

// DefaultPrewarmConfig returns the default pre-warm configuration.
func DefaultPrewarmConfig() PrewarmConfig {
	return PrewarmConfig{MaxConcurrency: 4}
}

// assetResult is the outcome of fetching a single manifest asset.
type assetResult struct {
	Index int
	Entry *cache.Entry
	Error error
}

// prewarm fetches every asset with a bounded worker pool and returns the
// snapshots in manifest order. The first failure cancels the remaining
// fetches and nothing is returned.
func prewarm(ctx context.Context, fetcher Fetcher, assets []string, cfg PrewarmConfig) ([]cache.Item, error) {
	start := time.Now()

	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultPrewarmConfig().MaxConcurrency
	}
	workers := min(cfg.MaxConcurrency, len(assets))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(assets))
	for i := range assets {
		queue <- i
	}
	close(queue)

	results := make(chan assetResult, len(assets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go prewarmWorker(ctx, fetcher, assets, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]cache.Item, len(assets))
	fetched := 0
	var firstErr error
	for result := range results {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
				cancel()
			}
			continue
		}
		items[result.Index] = cache.Item{Key: assets[result.Index], Entry: result.Entry}
		fetched++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if fetched != len(assets) {
		// workers stopped on cancellation without reporting an asset error
		return nil, fmt.Errorf("pre-warm interrupted (%d/%d assets): %w", fetched, len(assets), ctx.Err())
	}

	log.Debug().
		Int("assets", len(assets)).
		Dur("duration", time.Since(start)).
		Msg("Pre-warm fetch complete")

	return items, nil
}

// prewarmWorker processes assets from the queue.
func prewarmWorker(ctx context.Context, fetcher Fetcher, assets []string, queue <-chan int, results chan<- assetResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for idx := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := fetchAsset(ctx, fetcher, assets[idx])
		results <- assetResult{Index: idx, Entry: entry, Error: err}
		if err != nil {
			return
		}
	}
}

// fetchAsset fetches one manifest asset and snapshots it. Non-2xx responses fail.
func fetchAsset(ctx context.Context, fetcher Fetcher, asset string) (*cache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset, err)
	}

	resp, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset, err)
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset, err)
	}
	entry.URL = cache.KeyFor(req)
	entry.Method = http.MethodGet

	log.Debug().Str("url", asset).Int("status", resp.StatusCode).Msg("Pre-warm asset fetched")
	return entry, nil
}
