package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// defaultMaxBodyBytes caps how much of a response body is read.
const defaultMaxBodyBytes = 5 << 20

// Client performs a single request. Crawl fetches and detector probes both
// go through this interface.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f ClientFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// StatsReporter is implemented by clients that track request statistics.
type StatsReporter interface {
	Stats() *TransportStats
}

// TransportStats holds aggregate statistics for the transport client.
type TransportStats struct {
	TotalRequests int64
	Failures      int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
type ClientOptions struct {
	// Timeout bounds each request independently of the caller's context.
	Timeout time.Duration

	// ProxyURL is the proxy URL (HTTP or SOCKS5).
	ProxyURL string

	// FollowRedirects controls whether redirects are followed.
	FollowRedirects bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent is sent when a request carries no User-Agent header.
	UserAgent string

	// RandomUserAgent picks a browser User-Agent per request instead.
	RandomUserAgent bool

	// Headers and Cookies are added to every request unless the request
	// sets the same name itself.
	Headers map[string]string
	Cookies map[string]string

	// DisableCookieJar stops the client from remembering cookies set by
	// the target.
	DisableCookieJar bool

	// MaxRPS is the maximum requests per second across all callers
	// (0 = unlimited).
	MaxRPS float64

	// MaxBodyBytes caps the bytes read per response (0 = 5 MiB).
	MaxBodyBytes int64
}

// DefaultClient is the default implementation of the Client interface,
// backed by net/http.
type DefaultClient struct {
	httpClient *http.Client
	opts       ClientOptions
	limiter    *rate.Limiter
	jar        http.CookieJar

	mu              sync.RWMutex
	totalRequests   int64
	failures        int64
	totalDurationNs int64
}

var (
	_ Client        = (*DefaultClient)(nil)
	_ StatsReporter = (*DefaultClient)(nil)
)

// NewClient creates a new DefaultClient with the given options.
func NewClient(opts ClientOptions) (*DefaultClient, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // operator opt-in
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: missing scheme or host", opts.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	dc := &DefaultClient{
		httpClient: client,
		opts:       opts,
	}

	if !opts.DisableCookieJar {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		dc.jar = jar
	}

	if opts.MaxRPS > 0 {
		dc.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}

	return dc, nil
}

// Do sends an HTTP request and returns the response. It applies rate
// limiting, default headers and cookies, timing measurement, and optional
// per-request overrides.
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.MethodOrDefault(), req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent())
	}
	c.addCookies(httpReq, req.Cookies)

	httpClient := c.httpClient
	if req.FollowRedirects != nil || req.Timeout > 0 {
		cc := *c.httpClient
		if req.Timeout > 0 {
			cc.Timeout = req.Timeout
		}
		if req.FollowRedirects != nil {
			if *req.FollowRedirects {
				cc.CheckRedirect = nil
			} else {
				cc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
					return http.ErrUseLastResponse
				}
			}
		}
		httpClient = &cc
	}

	start := time.Now()
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		c.record(time.Since(start), false)
		return nil, err
	}
	defer httpResp.Body.Close()

	if c.jar != nil {
		if rc := httpResp.Cookies(); len(rc) > 0 {
			c.jar.SetCookies(httpResp.Request.URL, rc)
		}
	}

	body, err := c.readBody(httpResp)
	duration := time.Since(start)
	if err != nil {
		c.record(duration, false)
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	c.record(duration, true)

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentLength: httpResp.ContentLength,
		Duration:      duration,
		URL:           httpResp.Request.URL.String(),
		Protocol:      fmt.Sprintf("HTTP/%d.%d", httpResp.ProtoMajor, httpResp.ProtoMinor),
	}, nil
}

// addCookies sets explicit cookies first, then client defaults and jar
// cookies whose names were not already set.
func (c *DefaultClient) addCookies(httpReq *http.Request, explicit map[string]string) {
	seen := make(map[string]struct{}, len(explicit))
	for name, value := range explicit {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
		seen[name] = struct{}{}
	}
	for name, value := range c.opts.Cookies {
		if _, ok := seen[name]; ok {
			continue
		}
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
		seen[name] = struct{}{}
	}
	if c.jar == nil {
		return
	}
	for _, ck := range c.jar.Cookies(httpReq.URL) {
		if _, ok := seen[ck.Name]; ok {
			continue
		}
		httpReq.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
}

// readBody reads at most MaxBodyBytes and converts HTML bodies to UTF-8.
func (c *DefaultClient) readBody(httpResp *http.Response) ([]byte, error) {
	limit := c.opts.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	var r io.Reader = io.LimitReader(httpResp.Body, limit)

	ct := httpResp.Header.Get("Content-Type")
	if ct == "" || strings.Contains(strings.ToLower(ct), "html") {
		decoded, err := charset.NewReader(r, ct)
		if err == nil {
			r = decoded
		}
	}
	return io.ReadAll(r)
}

func (c *DefaultClient) userAgent() string {
	switch {
	case c.opts.UserAgent != "":
		return c.opts.UserAgent
	case c.opts.RandomUserAgent:
		return RandomUserAgent()
	default:
		return DefaultUserAgent
	}
}

func (c *DefaultClient) record(d time.Duration, ok bool) {
	c.mu.Lock()
	c.totalRequests++
	c.totalDurationNs += d.Nanoseconds()
	if !ok {
		c.failures++
	}
	c.mu.Unlock()
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *TransportStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &TransportStats{
		TotalRequests: c.totalRequests,
		Failures:      c.failures,
		TotalDuration: time.Duration(c.totalDurationNs),
	}
	if c.totalRequests > 0 {
		stats.AvgDuration = time.Duration(c.totalDurationNs / c.totalRequests)
	}
	return stats
}
