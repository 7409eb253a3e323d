package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/edge-worker/pkg/cache"
	"github.com/Sternrassler/edge-worker/pkg/config"
	"github.com/Sternrassler/edge-worker/pkg/logging"
	"github.com/Sternrassler/edge-worker/pkg/route"
)

// Fetcher performs network fetches. *origin.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*http.Response, error)
}

// Strategy answers an intercepted request of one traffic class.
// Handle never fails: every failure ends in a cached or synthetic response.
type Strategy interface {
	Class() route.Class
	Handle(ctx context.Context, r *http.Request) *http.Response
}

// Options configures the strategy set.
type Options struct {
	Storage    cache.Storage
	Fetcher    Fetcher
	Partitions config.Partitions
	Eviction   Eviction
}

// Set holds one strategy per traffic class.
type Set struct {
	image   *Image
	static  *Static
	dynamic *Dynamic
}

// NewSet creates the image, static and dynamic strategies.
func NewSet(opts Options) (*Set, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Eviction.Headroom < 0 || opts.Eviction.MaxEntries < 0 {
		return nil, fmt.Errorf("eviction limits must not be negative")
	}

	logger := logging.NewLogger("strategy")
	b := base{storage: opts.Storage, fetcher: opts.Fetcher, logger: logger}

	return &Set{
		image:   &Image{base: b, partition: opts.Partitions.Images, eviction: opts.Eviction},
		static:  &Static{base: b, partition: opts.Partitions.Static},
		dynamic: &Dynamic{base: b, partition: opts.Partitions.General},
	}, nil
}

// For returns the strategy of a traffic class.
func (s *Set) For(class route.Class) Strategy {
	switch class {
	case route.ClassImage:
		return s.image
	case route.ClassStatic:
		return s.static
	default:
		return s.dynamic
	}
}

// Handle classifies r and runs the matching strategy.
func (s *Set) Handle(ctx context.Context, r *http.Request) *http.Response {
	return s.For(route.ClassifyRequest(r)).Handle(ctx, r)
}

type base struct {
	storage cache.Storage
	fetcher Fetcher
	logger  zerolog.Logger
}

// match performs the aggregate lookup. A miss returns (nil, nil).
func (b *base) match(ctx context.Context, r *http.Request) (*http.Response, error) {
	entry, err := b.storage.Match(ctx, cache.KeyFor(r))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err, "cache lookup failed")
	}
	return withSource(cache.EntryToResponse(entry, r), SourceCache), nil
}

// store snapshots resp into the named partition. before runs on the opened
// partition ahead of the write. resp keeps an unconsumed body.
func (b *base) store(ctx context.Context, r *http.Request, resp *http.Response, name string, before func(cache.Partition) error) error {
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return storageError(err, "snapshot response")
	}
	key := cache.KeyFor(r)
	entry.URL = key
	entry.Method = r.Method

	p, err := b.storage.Open(ctx, name)
	if err != nil {
		return storageError(err, "open partition")
	}
	if before != nil {
		if err := before(p); err != nil {
			return storageError(err, "prepare partition")
		}
	}
	if err := p.Put(ctx, key, entry); err != nil {
		return storageError(err, "cache write failed")
	}

	b.logger.Debug().Str("partition", name).Str("url", key).Msg("Response cached")
	return nil
}

// fallback answers after a failure: aggregate lookup first, then the synthetic response.
func (b *base) fallback(ctx context.Context, class route.Class, r *http.Request, cause error) *http.Response {
	kind := FailureKind(cause)
	failuresTotal.WithLabelValues(string(class), kind).Inc()

	logger := logging.WithRequest(b.logger, r.Method, r.URL.String(), string(class))
	logger.Warn().Err(cause).Str("kind", kind).Msg("Request failed, falling back to cache")

	cached, err := b.match(ctx, r)
	if err != nil {
		failuresTotal.WithLabelValues(string(class), FailureKind(err)).Inc()
		logger.Error().Err(err).Msg("Fallback cache lookup failed")
	}
	if cached != nil {
		return cached
	}
	return Offline(class, r)
}

// run wraps a strategy body with fallback, timing and metrics.
func (b *base) run(ctx context.Context, class route.Class, r *http.Request, serve func() (*http.Response, error)) *http.Response {
	start := time.Now()

	resp, err := serve()
	if err != nil {
		resp = b.fallback(ctx, class, r, err)
	}

	strategyDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(string(class), resp.Header.Get(SourceHeader)).Inc()
	return resp
}

// Image is the cache-first strategy with size-bounded write-back.
type Image struct {
	base
	partition string
	eviction  Eviction
}

// Class returns route.ClassImage.
func (s *Image) Class() route.Class { return route.ClassImage }

// Handle serves r from any partition, or fetches it and writes a successful
// response to the images partition after trimming it.
func (s *Image) Handle(ctx context.Context, r *http.Request) *http.Response {
	return s.run(ctx, route.ClassImage, r, func() (*http.Response, error) {
		cached, err := s.match(ctx, r)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			s.logger.Debug().Str("url", r.URL.Path).Msg("Image served from cache")
			return cached, nil
		}

		resp, err := s.fetcher.Fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		if ok(resp) {
			trim := func(p cache.Partition) error {
				_, err := s.eviction.Trim(ctx, p)
				return err
			}
			if err := s.store(ctx, r, resp, s.partition, trim); err != nil {
				resp.Body.Close()
				return nil, err
			}
		}
		return withSource(resp, SourceNetwork), nil
	})
}

// Static is the cache-first strategy for the application shell.
type Static struct {
	base
	partition string
}

// Class returns route.ClassStatic.
func (s *Static) Class() route.Class { return route.ClassStatic }

// Handle serves r from any partition, or fetches it and writes a successful
// response to the static partition.
func (s *Static) Handle(ctx context.Context, r *http.Request) *http.Response {
	return s.run(ctx, route.ClassStatic, r, func() (*http.Response, error) {
		cached, err := s.match(ctx, r)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			s.logger.Debug().Str("url", r.URL.Path).Msg("Static asset served from cache")
			return cached, nil
		}

		resp, err := s.fetcher.Fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		if ok(resp) {
			if err := s.store(ctx, r, resp, s.partition, nil); err != nil {
				resp.Body.Close()
				return nil, err
			}
		}
		return withSource(resp, SourceNetwork), nil
	})
}

// Dynamic is the network-first strategy.
type Dynamic struct {
	base
	partition string
}

// Class returns route.ClassDynamic.
func (s *Dynamic) Class() route.Class { return route.ClassDynamic }

// Handle fetches r and overwrites the general partition entry on success.
// The cache is consulted only when the fetch fails.
func (s *Dynamic) Handle(ctx context.Context, r *http.Request) *http.Response {
	return s.run(ctx, route.ClassDynamic, r, func() (*http.Response, error) {
		resp, err := s.fetcher.Fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		if ok(resp) {
			if err := s.store(ctx, r, resp, s.partition, nil); err != nil {
				resp.Body.Close()
				return nil, err
			}
		}
		return withSource(resp, SourceNetwork), nil
	})
}
