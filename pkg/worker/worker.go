// Package worker is the edge worker's request entry point.
//
// Worker.ServeHTTP is the fetch event: while the worker controls traffic,
// same-origin GET requests are classified and answered by a strategy; every
// other request is passed through to the origin untouched. The control
// endpoints under /__worker/ carry the lifecycle, message, sync and push
// events of the client application.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/edge-worker/pkg/cache"
	"github.com/Sternrassler/edge-worker/pkg/lifecycle"
	"github.com/Sternrassler/edge-worker/pkg/logging"
	"github.com/Sternrassler/edge-worker/pkg/notify"
	"github.com/Sternrassler/edge-worker/pkg/origin"
	"github.com/Sternrassler/edge-worker/pkg/outbox"
	"github.com/Sternrassler/edge-worker/pkg/route"
	"github.com/Sternrassler/edge-worker/pkg/strategy"
)

// Options configures a Worker. Outbox and Notifier are optional capabilities.
type Options struct {
	Lifecycle  *lifecycle.Manager
	Strategies *strategy.Set
	Fetcher    *origin.Fetcher
	Storage    cache.Storage
	PublicHost string

	Outbox      *outbox.Store
	ContactPath string
	Retry       origin.RetryConfig

	Notifier *notify.Notifier
}

// Worker serves intercepted fetches and control events.
type Worker struct {
	lifecycle   *lifecycle.Manager
	strategies  *strategy.Set
	fetcher     *origin.Fetcher
	storage     cache.Storage
	publicHost  string
	outbox      *outbox.Store
	contactPath string
	retry       origin.RetryConfig
	notifier    *notify.Notifier
	logger      zerolog.Logger
}

// New creates a worker.
func New(opts Options) (*Worker, error) {
	switch {
	case opts.Lifecycle == nil:
		return nil, fmt.Errorf("lifecycle manager is required")
	case opts.Strategies == nil:
		return nil, fmt.Errorf("strategies are required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case opts.Storage == nil:
		return nil, fmt.Errorf("storage is required")
	}
	if opts.ContactPath == "" {
		opts.ContactPath = "/api/contact"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = origin.DefaultRetryConfig()
	}

	return &Worker{
		lifecycle:   opts.Lifecycle,
		strategies:  opts.Strategies,
		fetcher:     opts.Fetcher,
		storage:     opts.Storage,
		publicHost:  opts.PublicHost,
		outbox:      opts.Outbox,
		contactPath: opts.ContactPath,
		retry:       opts.Retry,
		notifier:    opts.Notifier,
		logger:      logging.NewLogger("worker"),
	}, nil
}

// ServeHTTP handles a fetch event.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if !w.lifecycle.Controlling() || !route.Intercept(r, w.publicHost) {
		w.fetcher.Forward(rw, r)
		return
	}

	start := time.Now()
	class := route.ClassifyRequest(r)

	resp := w.handle(r.Context(), class, r)
	defer resp.Body.Close()

	origin.WriteResponse(rw, resp)

	w.logger.Debug().
		Str("url", r.URL.RequestURI()).
		Str("class", string(class)).
		Str("source", resp.Header.Get(strategy.SourceHeader)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Fetch handled")
}

// handle runs the strategy for class. A panic inside the strategy is
// answered with the class's synthetic response.
func (w *Worker) handle(ctx context.Context, class route.Class, r *http.Request) (resp *http.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error().
				Interface("panic", rec).
				Str("url", r.URL.RequestURI()).
				Str("class", string(class)).
				Msg("Strategy panicked")
			resp = strategy.Offline(class, r)
		}
	}()
	return w.strategies.For(class).Handle(ctx, r)
}
