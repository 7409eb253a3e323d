package cache

import (
	"net/http"
	"net/url"
)

// KeyFor returns the storage key of a request: the URL path plus the raw
// query, without scheme, host or fragment. Only same-origin GET requests are
// ever stored, so the origin part carries no information.
//
// Example:
//
//	GET https://example.com/optimized/hero-400.webp?v=2#top -> /optimized/hero-400.webp?v=2
func KeyFor(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "/"
	}
	return KeyForURL(r.URL)
}

// KeyForURL returns the storage key of a URL.
func KeyForURL(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
