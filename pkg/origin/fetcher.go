// Package origin performs the edge worker's network fetches against the site origin.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/edge-worker/pkg/logging"
)

// Prometheus metrics for origin fetches.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_origin_requests_total",
		Help: "Total origin fetches by method and status",
	}, []string{"method", "status"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_origin_request_duration_seconds",
		Help:    "Origin fetch duration in seconds until response headers",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_origin_errors_total",
		Help: "Total origin fetch failures by class",
	}, []string{"class"})
)

// Hop-by-hop headers are meaningful only for a single connection and are
// never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL is the origin every request is sent to
	BaseURL *url.URL

	// Timeout bounds a fetch until the response body is closed. Zero means no bound.
	Timeout time.Duration

	// Transport overrides the HTTP transport (for testing)
	Transport http.RoundTripper
}

// Fetcher issues requests to the origin.
type Fetcher struct {
	httpClient *http.Client
	base       *url.URL
	timeout    time.Duration
	logger     zerolog.Logger
}

// New creates a new origin fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == nil || cfg.BaseURL.Host == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative (got %v)", cfg.Timeout)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Fetcher{
		httpClient: &http.Client{
			Transport: transport,
			// redirects are handed back to the client untouched
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		base:    cfg.BaseURL,
		timeout: cfg.Timeout,
		logger:  logging.NewLogger("origin"),
	}, nil
}

// Fetch sends r to the origin and returns its response. Non-2xx responses are
// returned as-is; only failures to obtain a response are errors, tagged as
// network or timeout failures.
// The caller must close the response body.
func (f *Fetcher) Fetch(ctx context.Context, r *http.Request) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if f.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	outReq, err := f.upstreamRequest(ctx, r)
	if err != nil {
		cancel()
		return nil, err
	}

	startTime := time.Now()
	resp, err := f.httpClient.Do(outReq)
	originRequestDuration.WithLabelValues(r.Method).Observe(time.Since(startTime).Seconds())

	if err != nil {
		cancel()
		wrapped := wrapTransportError(ctx, err)
		class := Classify(nil, wrapped)
		originErrorsTotal.WithLabelValues(string(class)).Inc()
		originRequestsTotal.WithLabelValues(r.Method, string(class)).Inc()
		f.logger.Debug().Err(err).
			Str("url", outReq.URL.String()).
			Str("error_class", string(class)).
			Msg("Origin fetch failed")
		return nil, wrapped
	}

	originRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if class := Classify(resp, nil); class != "" {
		originErrorsTotal.WithLabelValues(string(class)).Inc()
	}

	// the timeout context lives until the body has been consumed
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Forward proxies r to the origin and streams the response to w without
// caching or fallback. Transport failures become 502 Bad Gateway.
func (f *Fetcher) Forward(w http.ResponseWriter, r *http.Request) {
	resp, err := f.Fetch(r.Context(), r)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", r.URL.String()).Msg("Pass-through fetch failed")
		http.Error(w, "Could not connect to origin", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	WriteResponse(w, resp)
}

// WriteResponse copies resp to w. The body is not closed.
func WriteResponse(w http.ResponseWriter, resp *http.Response) {
	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	removeHopHeaders(header)

	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

// upstreamRequest rebuilds r against the origin base URL.
func (f *Fetcher) upstreamRequest(ctx context.Context, r *http.Request) (*http.Request, error) {
	target := *f.base
	target.Path = singleJoiningSlash(f.base.Path, r.URL.Path)
	if r.URL.RawPath != "" {
		target.RawPath = singleJoiningSlash(f.base.EscapedPath(), r.URL.RawPath)
	}
	target.RawQuery = r.URL.RawQuery
	target.Fragment = ""

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create origin request: %w", err)
	}
	outReq.ContentLength = r.ContentLength

	outReq.Header = r.Header.Clone()
	if outReq.Header == nil {
		outReq.Header = make(http.Header)
	}
	removeHopHeaders(outReq.Header)
	if r.Host != "" {
		outReq.Header.Set("X-Forwarded-Host", r.Host)
	}

	return outReq, nil
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func singleJoiningSlash(a, b string) string {
	switch {
	case a == "" || a == "/":
		if b == "" {
			return "/"
		}
		return b
	case b == "":
		return a
	}
	aslash := a[len(a)-1] == '/'
	bslash := b[0] == '/'
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
