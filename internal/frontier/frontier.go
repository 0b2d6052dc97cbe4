// Package frontier holds the crawl queue and the set of visited URLs.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrNotAbsolute is returned by Normalize for URLs without scheme or host.
var ErrNotAbsolute = errors.New("url has no scheme or host")

// Entry is one queued URL. URL is in normalized form.
type Entry struct {
	URL    string
	Depth  int
	Parent string
}

// Options bounds a Frontier.
type Options struct {
	// MaxDepth is the deepest depth Enqueue accepts.
	MaxDepth int
	// MaxVisits caps how many entries are ever handed out (0 = unlimited).
	MaxVisits int
}

// Frontier is a FIFO crawl queue shared by all workers. A normalized URL
// is enqueued at most once. An entry enters the visited set at the moment
// it is dequeued.
type Frontier struct {
	opts Options

	mu       sync.Mutex
	queue    []Entry
	seen     map[string]struct{}
	visited  map[string]struct{}
	order    []string
	inflight int
	closed   bool
	changed  chan struct{}
}

// New returns an empty Frontier.
func New(opts Options) *Frontier {
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Frontier{
		opts:    opts,
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
		changed: make(chan struct{}),
	}
}

// Enqueue adds rawURL at depth. It reports false when the URL is
// malformed, deeper than MaxDepth, already seen, a static asset, or the
// frontier has shut down.
func (f *Frontier) Enqueue(rawURL string, depth int, parent string) bool {
	if depth < 0 || depth > f.opts.MaxDepth {
		return false
	}
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}
	if IsAsset(key) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, Entry{URL: key, Depth: depth, Parent: parent})
	f.broadcastLocked()
	return true
}

// Next blocks until an entry is available. It reports false once the queue
// is empty and no entry is in flight, when MaxVisits is reached and the
// last in-flight entry finished, or when ctx is done. Every entry returned
// must be released with Done.
func (f *Frontier) Next(ctx context.Context) (Entry, bool) {
	for {
		if ctx.Err() != nil {
			return Entry{}, false
		}
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return Entry{}, false
		}
		if len(f.queue) > 0 && !f.limitReachedLocked() {
			e := f.queue[0]
			f.queue[0] = Entry{}
			f.queue = f.queue[1:]
			f.visited[e.URL] = struct{}{}
			f.order = append(f.order, e.URL)
			f.inflight++
			f.mu.Unlock()
			return e, true
		}
		if f.inflight == 0 {
			f.closed = true
			f.broadcastLocked()
			f.mu.Unlock()
			return Entry{}, false
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Entry{}, false
		}
	}
}

// Done marks an entry returned by Next as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	if f.inflight > 0 {
		f.inflight--
	}
	f.broadcastLocked()
	f.mu.Unlock()
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Visited returns the normalized dequeued URLs, sorted.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	f.mu.Unlock()
	sort.Strings(out)
	return out
}

// IsVisited reports whether rawURL has been dequeued.
func (f *Frontier) IsVisited(rawURL string) bool {
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

func (f *Frontier) limitReachedLocked() bool {
	return f.opts.MaxVisits > 0 && len(f.visited) >= f.opts.MaxVisits
}

func (f *Frontier) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Normalize returns the canonical form used for deduplication: lowercase
// scheme and host, no fragment, no default port, "/" for an empty path and
// a sorted query string.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("normalize %q: %w", rawURL, ErrNotAbsolute)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String(), nil
}

// assetExtensions are never crawled: they cannot contain links or forms.
var assetExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".svg": {}, ".webp": {},
	".css": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".wav": {}, ".ogg": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {}, ".exe": {}, ".dmg": {}, ".iso": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

// IsAsset reports whether the URL path names a static, non-HTML file.
func IsAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}
