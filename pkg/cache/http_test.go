package cache

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
)

func newResponse(status int, body string) *http.Response {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/optimized/hero-400.webp", nil)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"image/webp"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Request:    req,
	}
}

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr error
	}{
		{
			name: "successful response",
			resp: newResponse(http.StatusOK, "image-bytes"),
		},
		{
			name:    "not found is not cacheable",
			resp:    newResponse(http.StatusNotFound, "missing"),
			wantErr: ErrNotCacheable,
		},
		{
			name:    "server error is not cacheable",
			resp:    newResponse(http.StatusInternalServerError, "boom"),
			wantErr: ErrNotCacheable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResponseToEntry() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResponseToEntry() error = %v", err)
			}

			if entry.URL != "/optimized/hero-400.webp" {
				t.Errorf("URL = %q", entry.URL)
			}
			if entry.Method != http.MethodGet {
				t.Errorf("Method = %q", entry.Method)
			}
			if string(entry.Body) != "image-bytes" {
				t.Errorf("Body = %q", entry.Body)
			}
			if entry.CachedAt.IsZero() {
				t.Error("CachedAt was not set")
			}

			// the caller's response must still be readable
			body, _ := io.ReadAll(tt.resp.Body)
			if string(body) != "image-bytes" {
				t.Errorf("response body not restored, got %q", body)
			}
		})
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil); err == nil {
		t.Error("ResponseToEntry(nil) should fail")
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &Entry{
		URL:        "/index.html",
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte("<html></html>"),
	}

	// two independent responses from one entry
	for i := 0; i < 2; i++ {
		resp := EntryToResponse(entry, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
		if resp.Header.Get("Content-Type") != "text/html" {
			t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
		}
		if resp.ContentLength != int64(len(entry.Body)) {
			t.Errorf("ContentLength = %d", resp.ContentLength)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "<html></html>" {
			t.Errorf("body = %q", body)
		}
	}

	if EntryToResponse(nil, nil) != nil {
		t.Error("EntryToResponse(nil) should be nil")
	}
}

func TestEntryToResponse_DefaultStatus(t *testing.T) {
	resp := EntryToResponse(&Entry{StatusCode: http.StatusOK}, nil)
	if resp.Status != "200 OK" {
		t.Errorf("Status = %q, want 200 OK", resp.Status)
	}
}
