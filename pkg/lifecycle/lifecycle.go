// Package lifecycle installs and activates one version of the edge worker.
//
// Install pre-warms the static partition from the asset manifest: all assets
// are fetched, every one must answer 2xx, and they are written with a single
// all-or-nothing PutAll. A failed install leaves the worker redundant and
// nothing written; Register retries it.
//
// Activate deletes every partition whose name is not one of the three
// current versioned names, then claims clients. Until the worker is claimed,
// requests are passed through to the origin untouched.
//
//	parsed -> installing -> installed -> activating -> activated
//	               \-> redundant
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/edge-worker/pkg/cache"
	"github.com/Sternrassler/edge-worker/pkg/config"
	"github.com/Sternrassler/edge-worker/pkg/logging"
)

var (
	// ErrInstallFailed indicates the pre-warm could not be completed.
	ErrInstallFailed = errors.New("install failed")

	// ErrNotInstalled indicates activation was attempted before a successful install.
	ErrNotInstalled = errors.New("worker not installed")
)

// State is the lifecycle state of the worker.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Fetcher performs network fetches. *origin.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*http.Response, error)
}

// Options configures a Manager.
type Options struct {
	Storage    cache.Storage
	Fetcher    Fetcher
	Partitions config.Partitions
	Manifest   []string
	Prewarm    PrewarmConfig

	// AutoSkipWaiting activates right after a successful install.
	AutoSkipWaiting bool
}

// Manager drives the worker lifecycle. Operations are serialized; state
// reads never block on a running operation.
type Manager struct {
	storage    cache.Storage
	fetcher    Fetcher
	partitions config.Partitions
	manifest   []string
	prewarm    PrewarmConfig
	autoSkip   bool
	logger     zerolog.Logger

	// op serializes Install, SkipWaiting and Activate
	op sync.Mutex

	mu          sync.RWMutex
	state       State
	skipWaiting bool
	controlling bool
}

// New creates a lifecycle manager in the parsed state.
func New(opts Options) (*Manager, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := config.ValidateManifest(opts.Manifest); err != nil {
		return nil, err
	}

	return &Manager{
		storage:    opts.Storage,
		fetcher:    opts.Fetcher,
		partitions: opts.Partitions,
		manifest:   append([]string(nil), opts.Manifest...),
		prewarm:    opts.Prewarm,
		autoSkip:   opts.AutoSkipWaiting,
		logger:     logging.NewLogger("lifecycle"),
		state:      StateParsed,
	}, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Controlling reports whether the worker has claimed clients, i.e. whether
// intercepted requests go through the strategies.
func (m *Manager) Controlling() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlling
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	transitionsTotal.WithLabelValues(string(s)).Inc()
}

// Install pre-warms the static partition. On success the worker is installed
// and, when skip waiting was requested or AutoSkipWaiting is set, activated.
func (m *Manager) Install(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.installLocked(ctx)
}

func (m *Manager) installLocked(ctx context.Context) error {
	start := time.Now()
	m.setState(StateInstalling)
	m.logger.Info().Str("partition", m.partitions.Static).Int("assets", len(m.manifest)).Msg("Installing worker")

	if err := m.populate(ctx); err != nil {
		m.setState(StateRedundant)
		m.logger.Error().Err(err).Msg("Failed to cache critical assets")
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	installDuration.Observe(time.Since(start).Seconds())
	m.setState(StateInstalled)
	m.logger.Info().Dur("duration", time.Since(start)).Msg("Critical assets cached")

	m.mu.RLock()
	skip := m.skipWaiting || m.autoSkip
	m.mu.RUnlock()
	if skip {
		return m.activateLocked(ctx)
	}
	return nil
}

func (m *Manager) populate(ctx context.Context) error {
	items, err := prewarm(ctx, m.fetcher, m.manifest, m.prewarm)
	if err != nil {
		return err
	}

	p, err := m.storage.Open(ctx, m.partitions.Static)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.partitions.Static, err)
	}
	if err := p.PutAll(ctx, items); err != nil {
		return fmt.Errorf("populate %s: %w", m.partitions.Static, err)
	}
	return nil
}

// Register is a fresh registration attempt by a client. It installs the
// worker unless an install already succeeded.
func (m *Manager) Register(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	switch m.State() {
	case StateParsed, StateRedundant:
		return m.installLocked(ctx)
	default:
		m.logger.Debug().Str("state", string(m.State())).Msg("Registration ignored, worker already installed")
		return nil
	}
}

// SkipWaiting requests immediate activation. An installed worker activates
// now; a worker that is still installing activates as soon as install succeeds.
func (m *Manager) SkipWaiting(ctx context.Context) error {
	m.mu.Lock()
	m.skipWaiting = true
	m.mu.Unlock()

	m.op.Lock()
	defer m.op.Unlock()

	if m.State() != StateInstalled {
		return nil
	}
	return m.activateLocked(ctx)
}

// Activate removes stale partitions and claims clients.
func (m *Manager) Activate(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.activateLocked(ctx)
}

func (m *Manager) activateLocked(ctx context.Context) error {
	switch m.State() {
	case StateActivated:
		return nil
	case StateInstalled:
	default:
		return fmt.Errorf("%w (state %s)", ErrNotInstalled, m.State())
	}

	m.setState(StateActivating)
	m.logger.Info().Strs("whitelist", m.partitions.Whitelist()).Msg("Activating worker")

	deleted, err := m.deleteStale(ctx)
	if err != nil {
		m.setState(StateInstalled)
		m.logger.Error().Err(err).Msg("Failed to delete stale partitions")
		return err
	}

	m.Claim()
	m.setState(StateActivated)
	m.logger.Info().Int("deleted", deleted).Msg("Worker activated")
	return nil
}

// deleteStale deletes every non-whitelisted partition concurrently. Each
// partition is deleted whole.
func (m *Manager) deleteStale(ctx context.Context) (int, error) {
	names, err := m.storage.Partitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list partitions: %w", err)
	}

	var stale []string
	for _, name := range names {
		if !m.partitions.Contains(name) {
			stale = append(stale, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range stale {
		g.Go(func() error {
			if _, err := m.storage.Delete(gctx, name); err != nil {
				return fmt.Errorf("delete partition %s: %w", name, err)
			}
			m.logger.Info().Str("partition", name).Msg("Deleted old cache partition")
			partitionsDeletedTotal.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Claim takes control of client traffic.
func (m *Manager) Claim() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlling = true
}
