package cache

import (
	"net/http"
	"net/url"
	"testing"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "root",
			url:  "https://example.com/",
			want: "/",
		},
		{
			name: "no path",
			url:  "https://example.com",
			want: "/",
		},
		{
			name: "path only",
			url:  "https://example.com/optimized/hero-400.webp",
			want: "/optimized/hero-400.webp",
		},
		{
			name: "query kept verbatim",
			url:  "https://example.com/api/data?b=2&a=1",
			want: "/api/data?b=2&a=1",
		},
		{
			name: "fragment dropped",
			url:  "https://example.com/index.html#about",
			want: "/index.html",
		},
		{
			name: "escaped path",
			url:  "https://example.com/images/my%20photo.png",
			want: "/images/my%20photo.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatal(err)
			}
			if got := KeyFor(&http.Request{URL: u}); got != tt.want {
				t.Errorf("KeyFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyFor_OriginIndependent(t *testing.T) {
	a, _ := http.NewRequest(http.MethodGet, "http://localhost:8080/manifest.json", nil)
	b, _ := http.NewRequest(http.MethodGet, "https://portfolio.example/manifest.json", nil)

	if KeyFor(a) != KeyFor(b) {
		t.Errorf("keys differ: %q vs %q", KeyFor(a), KeyFor(b))
	}
}

func TestKeyFor_Nil(t *testing.T) {
	if got := KeyFor(nil); got != "/" {
		t.Errorf("KeyFor(nil) = %q, want /", got)
	}
}
