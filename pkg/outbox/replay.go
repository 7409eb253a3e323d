package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	perrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/edge-worker/pkg/logging"
	"github.com/Sternrassler/edge-worker/pkg/origin"
)

var (
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_outbox_pending",
		Help: "Number of queued contact submissions",
	})

	replaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_outbox_replays_total",
		Help: "Total outbox delivery attempts by outcome",
	}, []string{"outcome"}) // "delivered", "failed"
)

// Fetcher performs network fetches. *origin.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*http.Response, error)
}

// ReplayResult summarizes one replay run.
type ReplayResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Replay posts every queued item to the origin in FIFO order. Delivered
// items (2xx) are deleted; failed items stay queued with their attempt
// count incremented. Network failures and 5xx answers are retried with
// backoff before an item counts as failed.
func (s *Store) Replay(ctx context.Context, fetcher Fetcher, retry origin.RetryConfig) (ReplayResult, error) {
	items, err := s.Pending(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	logger := logging.NewLogger("outbox")
	var result ReplayResult

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := origin.Retry(ctx, retry, func() error {
			return deliver(ctx, fetcher, item)
		})
		if err != nil {
			result.Failed++
			replaysTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("id", item.ID).Int("attempts", item.Attempts+1).Msg("Outbox delivery failed")
			if markErr := s.markAttempt(ctx, item.ID); markErr != nil {
				return result, markErr
			}
			continue
		}

		if err := s.Delete(ctx, item.ID); err != nil {
			return result, err
		}
		result.Delivered++
		replaysTotal.WithLabelValues("delivered").Inc()
		logger.Info().Str("id", item.ID).Str("path", item.Path).Msg("Outbox item delivered")
	}

	remaining, err := s.Len(ctx)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining
	return result, nil
}

// deliver posts one item. 5xx answers are retryable, other non-2xx are not.
func deliver(ctx context.Context, fetcher Fetcher, item Item) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.Path, bytes.NewReader(item.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return perrors.Newf(perrors.CodeUnavailable, "origin answered %d", resp.StatusCode)
	default:
		return perrors.Newf(perrors.CodeInvalidInput, "origin rejected submission with %d", resp.StatusCode)
	}
}
