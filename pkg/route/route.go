// Package route decides which requests the edge worker intercepts and
// classifies intercepted requests into traffic classes.
//
// Classification is a pure function of method, URL and declared destination.
// The order is fixed: image, then static shell, then dynamic.
package route

import (
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Class is the traffic class of an intercepted request.
type Class string

const (
	// ClassImage selects the cache-first image strategy with bounded write-back.
	ClassImage Class = "image"

	// ClassStatic selects the cache-first application shell strategy.
	ClassStatic Class = "static"

	// ClassDynamic selects the network-first strategy.
	ClassDynamic Class = "dynamic"
)

// DestinationHeader carries the request destination ("image", "document", ...).
const DestinationHeader = "Sec-Fetch-Dest"

var imageExtension = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|webp|avif|svg|gif)$`)

// Intercept reports whether r is handled by a caching strategy. Only GET
// requests addressed to publicHost are intercepted; an empty publicHost
// accepts any host.
func Intercept(r *http.Request, publicHost string) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if publicHost == "" {
		return true
	}
	return sameHost(requestHost(r), publicHost)
}

// Classify returns the traffic class for a request.
func Classify(method string, u *url.URL, destination string) Class {
	switch {
	case isImage(u, destination):
		return ClassImage
	case isStatic(u):
		return ClassStatic
	default:
		return ClassDynamic
	}
}

// ClassifyRequest classifies r using its Sec-Fetch-Dest header as destination.
func ClassifyRequest(r *http.Request) Class {
	return Classify(r.Method, r.URL, r.Header.Get(DestinationHeader))
}

func isImage(u *url.URL, destination string) bool {
	if destination == "image" {
		return true
	}
	if strings.Contains(u.String(), "/optimized/") {
		return true
	}
	return imageExtension.MatchString(u.Path)
}

func isStatic(u *url.URL) bool {
	p := u.Path
	return strings.Contains(p, "/manifest.json") ||
		strings.Contains(p, "/sw.js") ||
		p == "/" || p == "" ||
		p == "/index.html"
}

// requestHost prefers the host of an absolute-form request URL over the Host header.
func requestHost(r *http.Request) string {
	if r.URL != nil && r.URL.Host != "" {
		return r.URL.Host
	}
	return r.Host
}

func sameHost(a, b string) bool {
	return strings.EqualFold(stripDefaultPort(a), stripDefaultPort(b))
}

func stripDefaultPort(hostport string) string {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	if port == "80" || port == "443" {
		return host
	}
	return hostport
}
