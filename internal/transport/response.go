package transport

import (
	"mime"
	"net/http"
	"strings"
	"time"
)

// Response represents a response received from a Client.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Headers contains the response headers.
	Headers http.Header

	// Body is the response body, decoded to UTF-8 for HTML content.
	Body []byte

	// ContentLength is the content length from the response header.
	ContentLength int64

	// Duration is the round-trip time for the request.
	Duration time.Duration

	// URL is the final URL after any redirects.
	URL string

	// Protocol is the protocol version (e.g., "HTTP/1.1", "HTTP/2.0").
	Protocol string

	// Rendered is true when the body is a browser-rendered DOM.
	Rendered bool
}

// BodyString returns the response body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// MediaType returns the lowercased media type of the Content-Type header,
// or "" when the header is absent or unparseable.
func (r *Response) MediaType() string {
	if r == nil || r.Headers == nil {
		return ""
	}
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// IsHTML reports whether the response looks like an HTML document. A
// missing Content-Type is treated as HTML.
func (r *Response) IsHTML() bool {
	switch r.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// Cookies returns the cookies set by the response.
func (r *Response) Cookies() []*http.Cookie {
	if r == nil || r.Headers == nil {
		return nil
	}
	hr := http.Response{Header: r.Headers}
	return hr.Cookies()
}
