// Package robots decides whether a URL may be crawled according to the
// target host's robots.txt.
package robots

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// DefaultAgent is the group matched when no user agent is configured.
const DefaultAgent = "*"

// Filter fetches robots.txt once per scheme and host and answers
// Allowed queries against it. A robots.txt that cannot be fetched allows
// everything.
type Filter struct {
	client transport.Client
	agent  string
	logger *slog.Logger

	mu    sync.Mutex
	hosts map[string]*hostRules
}

type hostRules struct {
	ready chan struct{}
	data  *robotstxt.RobotsData
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = l
	}
}

// New returns a Filter that fetches robots.txt through client and matches
// rules for userAgent.
func New(client transport.Client, userAgent string, opts ...Option) *Filter {
	if userAgent == "" {
		userAgent = DefaultAgent
	}
	f := &Filter{
		client: client,
		agent:  userAgent,
		logger: slog.Default(),
		hosts:  make(map[string]*hostRules),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Allowed reports whether rawURL may be fetched. Unparseable URLs are
// disallowed. If ctx ends while another caller is fetching the same
// robots.txt, Allowed reports false.
func (f *Filter) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	rules, ok := f.rulesFor(ctx, u)
	if !ok {
		return false
	}
	if rules.data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.data.TestAgent(path, f.agent)
}

func (f *Filter) rulesFor(ctx context.Context, u *url.URL) (*hostRules, bool) {
	key := u.Scheme + "://" + u.Host

	f.mu.Lock()
	rules, found := f.hosts[key]
	if !found {
		rules = &hostRules{ready: make(chan struct{})}
		f.hosts[key] = rules
	}
	f.mu.Unlock()

	if found {
		select {
		case <-rules.ready:
			return rules, true
		case <-ctx.Done():
			return nil, false
		}
	}

	rules.data = f.fetch(ctx, key+"/robots.txt")
	close(rules.ready)
	return rules, true
}

func (f *Filter) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	resp, err := f.client.Do(ctx, &transport.Request{Method: "GET", URL: robotsURL})
	if err != nil {
		f.logger.Debug("robots.txt unavailable, allowing all", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		f.logger.Debug("robots.txt unparseable, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	return data
}
