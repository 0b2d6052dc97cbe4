package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrBrowserClosed is returned by BrowserClient.Do after Close.
var ErrBrowserClosed = errors.New("browser client closed")

// BrowserOptions configures a BrowserClient.
type BrowserOptions struct {
	// Timeout bounds a single navigation (0 = 30s).
	Timeout time.Duration

	// UserAgent overrides the browser's User-Agent.
	UserAgent string

	// ProxyURL routes browser traffic through a proxy.
	ProxyURL string

	// InsecureSkipVerify ignores certificate errors.
	InsecureSkipVerify bool

	// Settle is an extra wait after load so scripts can mutate the DOM.
	Settle time.Duration

	// Headers and Cookies are sent with every navigation.
	Headers map[string]string
	Cookies map[string]string

	// ExecPath points at a Chrome/Chromium binary. Empty uses the
	// default lookup.
	ExecPath string

	// Fallback serves requests a browser navigation cannot express
	// (anything other than GET).
	Fallback Client
}

// BrowserClient renders pages in headless Chrome and returns the resulting
// DOM as the response body. Only GET requests are rendered.
type BrowserClient struct {
	opts BrowserOptions

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closed        bool
}

var _ Client = (*BrowserClient)(nil)

// NewBrowserClient returns a client that starts Chrome lazily on first use.
func NewBrowserClient(opts BrowserOptions) *BrowserClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &BrowserClient{opts: opts}
}

// start launches the browser once.
func (b *BrowserClient) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrowserClosed
	}
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	if b.opts.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(b.opts.ProxyURL))
	}
	if b.opts.InsecureSkipVerify {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.allocCancel = allocCancel
	return browserCtx, nil
}

// Do navigates a fresh tab to req.URL and returns the rendered DOM.
func (b *BrowserClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.MethodOrDefault() != http.MethodGet || req.Body != "" {
		if b.opts.Fallback == nil {
			return nil, fmt.Errorf("browser client cannot send %s requests", req.MethodOrDefault())
		}
		return b.opts.Fallback.Do(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	timeout := b.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	doc := &documentResponse{}
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			doc.set(e.Response)
		}
	})

	headers := make(network.Headers)
	for k, v := range b.opts.Headers {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	cookies := make([]*network.CookieParam, 0, len(b.opts.Cookies)+len(req.Cookies))
	for name, value := range mergeCookies(b.opts.Cookies, req.Cookies) {
		cookies = append(cookies, &network.CookieParam{Name: name, Value: value, URL: req.URL})
	}

	var html string
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(headers) == 0 {
				return nil
			}
			return network.SetExtraHTTPHeaders(headers).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(cookies) == 0 {
				return nil
			}
			return network.SetCookies(cookies).Do(ctx)
		}),
		chromedp.Navigate(req.URL),
	}
	if b.opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(b.opts.Settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", req.URL, err)
	}
	duration := time.Since(start)

	status, hdr, finalURL := doc.get()
	if status == 0 {
		status = http.StatusOK
	}
	if finalURL == "" {
		finalURL = req.URL
	}
	if hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", "text/html; charset=utf-8")
	}

	return &Response{
		StatusCode:    status,
		Headers:       hdr,
		Body:          []byte(html),
		ContentLength: int64(len(html)),
		Duration:      duration,
		URL:           finalURL,
		Protocol:      "HTTP/1.1",
		Rendered:      true,
	}, nil
}

// Close shuts the browser down. Later calls to Do fail.
func (b *BrowserClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.browserCancel != nil {
		b.browserCancel()
		b.allocCancel()
		b.browserCtx = nil
	}
	return nil
}

// documentResponse captures the first top-level document response of a
// navigation. Events arrive on chromedp's goroutine.
type documentResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func (d *documentResponse) set(r *network.Response) {
	if r == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != 0 {
		return
	}
	d.status = int(r.Status)
	d.url = r.URL
	d.headers = make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		d.headers.Set(k, fmt.Sprint(v))
	}
}

func (d *documentResponse) get() (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.headers
	if h == nil {
		h = make(http.Header)
	}
	return d.status, h, d.url
}

func mergeCookies(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
