package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry snapshots a successful response into an Entry.
// The response body is read and restored, so the caller still holds an
// unconsumed response afterwards.
// Returns ErrNotCacheable for non-2xx responses; the body is left untouched.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrNotCacheable, resp.StatusCode)
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		Body:       body,
		CachedAt:   time.Now(),
	}
	if resp.Request != nil {
		entry.URL = KeyFor(resp.Request)
		entry.Method = resp.Request.Method
	}

	return entry, nil
}

// EntryToResponse builds a fresh response from a stored entry.
// Every call returns an independent body reader.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	if entry == nil {
		return nil
	}

	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(entry.Body)))

	status := entry.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode))
	}

	return &http.Response{
		Status:        status,
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
