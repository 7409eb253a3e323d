// Package config holds the process-wide edge worker configuration.
//
// A Config is parsed once at startup and never mutated afterwards. Every
// component that needs a partition name reads it from Config.Partitions so
// that install-time and activate-time whitelists cannot drift apart.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the edge worker configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string `env:"PORT" envDefault:"8080"`

	// OriginURL is the site origin every network fetch goes to.
	OriginURL string `env:"ORIGIN_URL" envDefault:"http://localhost:3000"`

	// PublicHost is the host clients address the worker by. Requests for any
	// other host are not intercepted. Empty accepts every host.
	PublicHost string `env:"PUBLIC_HOST"`

	// Storage
	RedisURL string `env:"REDIS_URL"` // empty selects the in-memory store
	RedisDB  int    `env:"REDIS_DB" envDefault:"0"`

	// Partition naming
	AppName      string `env:"APP_NAME" envDefault:"maxym-portfolio"`
	ImagesPrefix string `env:"IMAGES_PREFIX" envDefault:"portfolio-images"`
	StaticPrefix string `env:"STATIC_PREFIX" envDefault:"static"`
	Version      string `env:"CACHE_VERSION" envDefault:"2.0.0"`

	// ManifestPath optionally points to a YAML file overriding the static asset manifest.
	ManifestPath string `env:"MANIFEST_PATH"`

	// FetchTimeout bounds every origin fetch. Zero disables the bound.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`

	// Image partition bound
	ImageCacheMaxEntries int `env:"IMAGE_CACHE_MAX_ENTRIES" envDefault:"100"`
	EvictionHeadroom     int `env:"EVICTION_HEADROOM" envDefault:"10"`

	// Lifecycle
	PrewarmConcurrency int  `env:"PREWARM_CONCURRENCY" envDefault:"4"`
	AutoSkipWaiting    bool `env:"AUTO_SKIP_WAITING" envDefault:"true"`

	// Background sync outbox. Empty disables the sync capability.
	OutboxDBPath string `env:"OUTBOX_DB_PATH"`
	ContactPath  string `env:"CONTACT_PATH" envDefault:"/api/contact"`

	// Push notifications. Empty NATSURL disables the push capability.
	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"edge-worker.notifications"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can work with.
func (c Config) Validate() error {
	u, err := url.Parse(c.OriginURL)
	if err != nil {
		return fmt.Errorf("origin_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin_url must be http or https (got %q)", c.OriginURL)
	}
	if u.Host == "" {
		return fmt.Errorf("origin_url must include a host (got %q)", c.OriginURL)
	}

	if c.AppName == "" || c.ImagesPrefix == "" || c.StaticPrefix == "" {
		return fmt.Errorf("partition name prefixes must not be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("cache_version is required")
	}

	if c.ImageCacheMaxEntries < 1 {
		return fmt.Errorf("image_cache_max_entries must be >= 1 (got %d)", c.ImageCacheMaxEntries)
	}
	if c.EvictionHeadroom < 0 || c.EvictionHeadroom > c.ImageCacheMaxEntries {
		return fmt.Errorf("eviction_headroom must be between 0 and %d (got %d)",
			c.ImageCacheMaxEntries, c.EvictionHeadroom)
	}

	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative")
	}
	if c.PrewarmConcurrency < 1 {
		return fmt.Errorf("prewarm_concurrency must be >= 1 (got %d)", c.PrewarmConcurrency)
	}
	if !strings.HasPrefix(c.ContactPath, "/") {
		return fmt.Errorf("contact_path must be an absolute path (got %q)", c.ContactPath)
	}
	return nil
}

// Origin returns the parsed origin URL. Validate must have succeeded.
func (c Config) Origin() *url.URL {
	u, _ := url.Parse(c.OriginURL)
	return u
}

// Partitions returns the versioned partition names for this configuration.
func (c Config) Partitions() Partitions {
	return NewPartitions(c.AppName, c.ImagesPrefix, c.StaticPrefix, c.Version)
}
