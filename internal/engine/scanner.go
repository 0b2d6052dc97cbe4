package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Varunmathiazhagan/final-project-review/internal/frontier"
	"github.com/Varunmathiazhagan/final-project-review/internal/robots"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// ErrAlreadyStarted is returned when Run is called twice on one Scanner.
var ErrAlreadyStarted = errors.New("scan already started")

// Scanner crawls from the start URL and tests every injection point it
// discovers. A Scanner runs once.
type Scanner struct {
	config    *ScanConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	client    transport.Client
	pages     transport.Client
	detectors []Detector
	extract   Extractor
	robots    RobotsChecker

	id       string
	frontier *frontier.Frontier
	results  *results
	events   *dispatcher
	requests atomic.Int64
	running  atomic.Bool
	scope    string

	mu         sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
	cancelled  bool
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithDetectors sets the detectors run against each injection point, in
// order.
func WithDetectors(detectors ...Detector) ScannerOption {
	return func(s *Scanner) {
		s.detectors = detectors
	}
}

// WithExtractor sets the function that parses fetched pages.
func WithExtractor(fn Extractor) ScannerOption {
	return func(s *Scanner) {
		s.extract = fn
	}
}

// WithPageClient fetches crawl pages through c instead of the probe
// client, for example a JavaScript-rendering browser.
func WithPageClient(c transport.Client) ScannerOption {
	return func(s *Scanner) {
		s.pages = c
	}
}

// WithRobots replaces the robots.txt checker.
func WithRobots(r RobotsChecker) ScannerOption {
	return func(s *Scanner) {
		s.robots = r
	}
}

// WithLogger replaces the logger built from the config verbosity.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithTracer records spans for the scan, each page and each detector.
func WithTracer(t trace.Tracer) ScannerOption {
	return func(s *Scanner) {
		s.tracer = t
	}
}

// NewScanner creates a scanner that sends every request through client.
func NewScanner(client transport.Client, config *ScanConfig, opts ...ScannerOption) *Scanner {
	if config == nil {
		config = DefaultScanConfig()
	}

	s := &Scanner{
		config:  config,
		logger:  NewLogger(os.Stderr, config),
		tracer:  noop.NewTracerProvider().Tracer(""),
		client:  client,
		id:      uuid.NewString(),
		results: newResults(),
		frontier: frontier.New(frontier.Options{
			MaxDepth:  config.MaxDepth,
			MaxVisits: config.MaxPages,
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.extract == nil {
		s.extract = func(string, *transport.Response) PageContent { return PageContent{} }
	}
	s.events = newDispatcher(s.logger)
	return s
}

// NewLogger returns a text logger at the level implied by the config:
// Error when quiet, Debug when verbose, Info otherwise.
func NewLogger(w io.Writer, config *ScanConfig) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case config.Quiet:
		level = slog.LevelError
	case config.Verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// OnProgress registers an observer for progress snapshots. Observers run on
// a separate goroutine and must not block for long.
func (s *Scanner) OnProgress(fn func(ProgressSnapshot)) {
	s.events.addProgress(fn)
}

// OnFinding registers an observer called once per recorded finding.
func (s *Scanner) OnFinding(fn func(Finding)) {
	s.events.addFinding(fn)
}

// Run performs the whole crawl-and-test cycle. It returns an error only
// for invalid configuration. When ctx is cancelled no new request is
// started, requests already in flight finish, and Run returns nil with
// the partial results.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.client == nil {
		return errors.New("engine: no client configured")
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	start, _ := s.config.start()
	s.scope = HostKey(start)

	ctx, span := s.tracer.Start(ctx, "scan", trace.WithAttributes(
		attribute.String("scan.id", s.id),
		attribute.String("scan.start_url", start.String()),
	))
	defer span.End()

	probes := s.gate(ctx, s.client)
	pages := probes
	if s.pages != nil {
		pages = s.gate(ctx, s.pages)
	}
	if s.robots == nil && s.config.RespectRobots {
		s.robots = robots.New(probes, s.config.RobotsUserAgent, robots.WithLogger(s.logger))
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	s.events.start()
	s.frontier.Enqueue(start.String(), 0, "")
	s.logger.Info("scan started",
		"id", s.id,
		"url", start.String(),
		"depth", s.config.MaxDepth,
		"concurrency", s.config.Concurrency,
	)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, pages, probes)
		}()
	}
	wg.Wait()

	cancelled := ctx.Err() != nil
	s.mu.Lock()
	s.finishedAt = time.Now().UTC()
	s.cancelled = cancelled
	s.mu.Unlock()

	snap := s.Snapshot()
	s.events.publishProgress(snap)
	s.events.close(DrainTimeout)

	span.SetAttributes(
		attribute.Int("scan.visited", snap.Crawled),
		attribute.Int("scan.findings", snap.Findings),
		attribute.Bool("scan.cancelled", cancelled),
	)
	s.logger.Info("scan finished",
		"id", s.id,
		"visited", snap.Crawled,
		"tested", snap.Tested,
		"findings", snap.Findings,
		"requests", snap.Requests,
		"cancelled", cancelled,
	)
	return nil
}

// gate refuses to start requests once runCtx is done. Requests already
// started run detached from cancellation, bounded by the client timeout.
func (s *Scanner) gate(runCtx context.Context, c transport.Client) transport.Client {
	return transport.ClientFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if err := runCtx.Err(); err != nil {
			return nil, err
		}
		s.requests.Add(1)
		return c.Do(context.WithoutCancel(ctx), req)
	})
}

// inScope reports whether rawURL is on the start URL's host.
func (s *Scanner) inScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return HostKey(u) == s.scope
}

// HostKey is the lowercase host with any default port removed.
func HostKey(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	switch port := u.Port(); port {
	case "", "80", "443":
		return host
	default:
		return host + ":" + port
	}
}

// ID returns the unique identifier of this run.
func (s *Scanner) ID() string { return s.id }

// Config returns the scan configuration.
func (s *Scanner) Config() *ScanConfig { return s.config }

// Findings returns the recorded findings in the order they were found.
func (s *Scanner) Findings() []Finding {
	return s.results.all()
}

// Visited returns the normalized URLs dequeued so far, sorted.
func (s *Scanner) Visited() []string {
	return s.frontier.Visited()
}

// VisitedCount returns the number of URLs dequeued so far.
func (s *Scanner) VisitedCount() int {
	return s.frontier.VisitedCount()
}

// Snapshot returns current progress counters.
func (s *Scanner) Snapshot() ProgressSnapshot {
	findings, tested := s.results.counts()
	return ProgressSnapshot{
		Crawled:  s.frontier.VisitedCount(),
		Queued:   s.frontier.Len(),
		Findings: findings,
		Tested:   tested,
		Requests: int(s.requests.Load()),
	}
}

// StartedAt returns when Run began, or the zero time.
func (s *Scanner) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// FinishedAt returns when Run returned, or the zero time.
func (s *Scanner) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// Summary collects the results of the run.
func (s *Scanner) Summary() Summary {
	s.mu.Lock()
	started, finished, cancelled := s.startedAt, s.finishedAt, s.cancelled
	s.mu.Unlock()
	return Summary{
		ID:         s.id,
		StartURL:   s.config.StartURL,
		StartedAt:  started,
		FinishedAt: finished,
		Cancelled:  cancelled,
		Snapshot:   s.Snapshot(),
		Visited:    s.Visited(),
		Findings:   s.Findings(),
	}
}
