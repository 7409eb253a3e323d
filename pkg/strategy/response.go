package strategy

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/Sternrassler/edge-worker/pkg/route"
)

// SourceHeader names where a response came from.
const SourceHeader = "X-Cache-Source"

// Response sources.
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
	SourceOffline = "offline"
)

const (
	imageNotFoundText  = "Image not found"
	assetOfflineText   = "Asset not available offline"
	contentOfflineJSON = `{"error":"offline","message":"Content not available offline"}`
)

// Offline returns the synthetic response of a traffic class, used when
// neither the network nor the cache can answer.
func Offline(class route.Class, r *http.Request) *http.Response {
	switch class {
	case route.ClassImage:
		return synthetic(r, http.StatusNotFound, imageNotFoundText, "", nil)
	case route.ClassStatic:
		return synthetic(r, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable),
			"text/plain; charset=utf-8", []byte(assetOfflineText))
	default:
		return synthetic(r, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable),
			"application/json", []byte(contentOfflineJSON))
	}
}

func synthetic(r *http.Request, code int, statusText, contentType string, body []byte) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set(SourceHeader, SourceOffline)

	return &http.Response{
		Status:        strconv.Itoa(code) + " " + statusText,
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func withSource(resp *http.Response, source string) *http.Response {
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(SourceHeader, source)
	return resp
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
