package origin

import (
	"context"
	"errors"
	"net/http"

	perrors "github.com/jmgilman/go/errors"
)

// ErrorClass represents a classification of origin failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures (offline, DNS, refused).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents fetches cut off by the fetch timeout.
	ErrorClassTimeout ErrorClass = "timeout"
)

// ErrRetryExhausted is returned when all retry attempts are exhausted.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrContextCancelled is returned when the context is cancelled during retry.
var ErrContextCancelled = errors.New("context cancelled")

// wrapTransportError tags a failed round trip as a network or timeout error.
func wrapTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return perrors.Wrap(err, perrors.CodeTimeout, "origin fetch timed out")
	}
	return perrors.Wrap(err, perrors.CodeNetwork, "origin fetch failed")
}

// Classify categorizes a fetch outcome for logs and metrics.
// It returns "" for successful (< 400) responses.
func Classify(resp *http.Response, err error) ErrorClass {
	if err != nil {
		if perrors.GetCode(err) == perrors.CodeTimeout {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}

	switch {
	case resp == nil:
		return ErrorClassNetwork
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// IsNetworkError reports whether err is a transport or timeout failure, i.e. the
// origin could not be reached at all.
func IsNetworkError(err error) bool {
	code := perrors.GetCode(err)
	return code == perrors.CodeNetwork || code == perrors.CodeTimeout
}
