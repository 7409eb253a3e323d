package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/edge-worker/pkg/cache"
	"github.com/Sternrassler/edge-worker/pkg/config"
	"github.com/Sternrassler/edge-worker/pkg/lifecycle"
	"github.com/Sternrassler/edge-worker/pkg/logging"
	"github.com/Sternrassler/edge-worker/pkg/metrics"
	"github.com/Sternrassler/edge-worker/pkg/notify"
	"github.com/Sternrassler/edge-worker/pkg/origin"
	"github.com/Sternrassler/edge-worker/pkg/outbox"
	"github.com/Sternrassler/edge-worker/pkg/strategy"
	"github.com/Sternrassler/edge-worker/pkg/worker"
)

const installTimeout = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Edge worker stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	// A failed install leaves the worker redundant; requests pass through
	// and POST /__worker/register retries.
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	if err := srv.lifecycle.Install(installCtx); err != nil {
		log.Error().Err(err).Msg("Install failed, serving pass-through")
	}
	cancel()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("origin", cfg.OriginURL).
			Str("version", cfg.Version).
			Str("state", string(srv.lifecycle.State())).
			Msg("Starting edge worker")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down edge worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// server is the wired edge worker.
type server struct {
	handler   http.Handler
	lifecycle *lifecycle.Manager
	closers   []func()
}

// Close releases storage, outbox and NATS connections.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServer(ctx context.Context, cfg config.Config) (*server, error) {
	srv := &server{}
	ok := false
	defer func() {
		if !ok {
			srv.Close()
		}
	}()

	storage, ping, err := openStorage(ctx, cfg, srv)
	if err != nil {
		return nil, err
	}

	fetcher, err := origin.New(origin.Config{BaseURL: cfg.Origin(), Timeout: cfg.FetchTimeout})
	if err != nil {
		return nil, fmt.Errorf("create origin fetcher: %w", err)
	}

	manifest, err := config.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	partitions := cfg.Partitions()

	strategies, err := strategy.NewSet(strategy.Options{
		Storage:    storage,
		Fetcher:    fetcher,
		Partitions: partitions,
		Eviction: strategy.Eviction{
			MaxEntries: cfg.ImageCacheMaxEntries,
			Headroom:   cfg.EvictionHeadroom,
		},
	})
	if err != nil {
		return nil, err
	}

	lc, err := lifecycle.New(lifecycle.Options{
		Storage:         storage,
		Fetcher:         fetcher,
		Partitions:      partitions,
		Manifest:        manifest,
		Prewarm:         lifecycle.PrewarmConfig{MaxConcurrency: cfg.PrewarmConcurrency},
		AutoSkipWaiting: cfg.AutoSkipWaiting,
	})
	if err != nil {
		return nil, err
	}
	srv.lifecycle = lc

	wopts := worker.Options{
		Lifecycle:   lc,
		Strategies:  strategies,
		Fetcher:     fetcher,
		Storage:     storage,
		PublicHost:  cfg.PublicHost,
		ContactPath: cfg.ContactPath,
		Retry:       origin.DefaultRetryConfig(),
	}

	if cfg.OutboxDBPath != "" {
		store, err := outbox.Open(cfg.OutboxDBPath)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, func() { _ = store.Close() })
		wopts.Outbox = store
		log.Info().Str("path", cfg.OutboxDBPath).Msg("Background sync outbox enabled")
	}

	if cfg.NATSURL != "" {
		pub, err := notify.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, pub.Close)
		wopts.Notifier = notify.New(pub, cfg.NATSSubject, cfg.PublicHost)
		log.Info().Str("subject", cfg.NATSSubject).Msg("Push notifications enabled")
	}

	w, err := worker.New(wopts)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(ping, lc))
	r.Handle("/metrics", metrics.Handler())
	w.Routes(r)
	r.Handle("/*", w)

	srv.handler = r
	ok = true
	return srv, nil
}

// openStorage selects Redis when REDIS_URL is set and the in-memory store otherwise.
func openStorage(ctx context.Context, cfg config.Config, srv *server) (cache.Storage, func(context.Context) error, error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, using in-memory cache storage")
		return cache.NewMemoryStorage(), func(context.Context) error { return nil }, nil
	}

	opts, err := redisOptions(cfg.RedisURL, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	redisClient := redis.NewClient(opts)
	srv.closers = append(srv.closers, func() { _ = redisClient.Close() })

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")

	ping := func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	return cache.NewRedisStorage(redisClient), ping, nil
}

// redisOptions accepts a redis:// URL or a plain host:port address.
func redisOptions(raw string, db int) (*redis.Options, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if db != 0 {
			opts.DB = db
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw, DB: db}, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready when storage answers and the install did not fail.
func readyHandler(ping func(context.Context) error, lc *lifecycle.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"state": lc.State(), "storage": "ok"}

		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["storage"] = err.Error()
		}
		if lc.State() == lifecycle.StateRedundant {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
