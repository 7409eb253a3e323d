// Package testutil provides testing utilities for the edge worker.
package testutil

import (
	"mime"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"time"
)

// MockOriginResponse defines the behavior for a mock origin path.
type MockOriginResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable origin server for testing.
//
// Unconfigured paths answer 200 with the body "origin:<path>". When offline,
// every request is aborted without a response, which clients observe as a
// network failure.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	offline  bool

	// Tracking
	requestCount int
	pathCounts   map[string]int
	lastHeader   http.Header
}

// NewMockOrigin starts a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastHeader = r.Header.Clone()
		offline := mock.offline
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if offline {
			// drop the connection without writing a response
			panic(http.ErrAbortHandler)
		}

		if exists {
			handler(w, r)
			return
		}
		defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastHeader = nil
}

// SetOffline switches network failure simulation on or off.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockOriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests that reached the server.
func (m *MockOrigin) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests for a single path.
func (m *MockOrigin) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastHeader returns the headers of the most recent request.
func (m *MockOrigin) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func defaultHandler(w http.ResponseWriter, r *http.Request) {
	if ct := mime.TypeByExtension(path.Ext(r.URL.Path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("origin:" + r.URL.Path))
}

// NewOKResponse creates a 200 response with the given body and content type.
func NewOKResponse(body, contentType string) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": contentType},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusNotFound,
		Body:       "not found",
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
