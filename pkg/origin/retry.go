package origin

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_origin_retries_total",
		Help: "Total number of origin retry attempts",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_origin_retry_backoff_seconds",
		Help:    "Backoff duration before origin retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_origin_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. Backoff grows exponentially with ±20% jitter and
// respects context cancellation.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !perrors.IsRetryable(err) {
			return lastErr
		}

		// If this was the last attempt, don't wait
		if attempt >= config.MaxAttempts {
			break
		}

		retriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.Observe(jitter.Seconds())

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
