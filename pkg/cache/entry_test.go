package cache

import (
	"net/http"
	"testing"
)

func TestEntry_OK(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusNoContent, true},
		{299, true},
		{http.StatusNotModified, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
		{199, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			e := &Entry{StatusCode: tt.status}
			if got := e.OK(); got != tt.want {
				t.Errorf("OK() for %d = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestEntry_Clone(t *testing.T) {
	orig := &Entry{
		URL:        "/a.png",
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"image/png"}},
		Body:       []byte("png"),
	}

	c := orig.Clone()
	c.Body[0] = 'X'
	c.Headers.Set("Content-Type", "text/plain")

	if string(orig.Body) != "png" {
		t.Errorf("original body mutated: %q", orig.Body)
	}
	if orig.Headers.Get("Content-Type") != "image/png" {
		t.Errorf("original headers mutated: %v", orig.Headers)
	}

	var nilEntry *Entry
	if nilEntry.Clone() != nil {
		t.Error("Clone() of nil entry should be nil")
	}
}
