// Package transport provides the fetch abstraction shared by the crawler
// and every injection detector.
package transport

import (
	"maps"
	"time"
)

// Request represents an HTTP request to be sent by a Client.
type Request struct {
	// Method is the HTTP method (GET, POST). Empty means GET.
	Method string

	// URL is the absolute target URL including any query string.
	URL string

	// Headers contains custom HTTP headers to include.
	Headers map[string]string

	// Body is the request body content.
	Body string

	// ContentType is the Content-Type header value.
	ContentType string

	// Cookies contains cookies to include in the request. An entry here
	// overrides a cookie of the same name held by the client jar.
	Cookies map[string]string

	// FollowRedirects overrides the client-level redirect setting
	// for this specific request. nil means use the client default.
	FollowRedirects *bool

	// Timeout overrides the client-level timeout for this specific
	// request. Zero means use the client default.
	Timeout time.Duration
}

// Clone returns a deep copy of the Request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}

	clone := &Request{
		Method:      r.Method,
		URL:         r.URL,
		Body:        r.Body,
		ContentType: r.ContentType,
		Timeout:     r.Timeout,
		Headers:     maps.Clone(r.Headers),
		Cookies:     maps.Clone(r.Cookies),
	}

	if r.FollowRedirects != nil {
		val := *r.FollowRedirects
		clone.FollowRedirects = &val
	}

	return clone
}

// MethodOrDefault returns the request method, defaulting to GET.
func (r *Request) MethodOrDefault() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}
