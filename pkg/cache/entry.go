package cache

import (
	"bytes"
	"net/http"
	"time"
)

// Entry is a stored response snapshot. Entries are never modified once written;
// an update replaces the whole entry.
type Entry struct {
	// URL is the request key the entry was stored under
	URL string `json:"url"`

	// Method of the request that produced the response (always GET today)
	Method string `json:"method"`

	// StatusCode is the HTTP status code of the stored response
	StatusCode int `json:"status_code"`

	// Status is the status line text, e.g. "200 OK"
	Status string `json:"status"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Body is the full response body
	Body []byte `json:"body"`

	// CachedAt is when the snapshot was taken
	CachedAt time.Time `json:"cached_at"`
}

// OK reports whether the entry holds a successful (2xx) response.
func (e *Entry) OK() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Headers = e.Headers.Clone()
	c.Body = bytes.Clone(e.Body)
	return &c
}
