// Package sqlscan assembles a ready-to-run scanner from a ScanConfig: the
// HTTP client, the optional JavaScript-rendering page fetcher, the page
// extractor and the four injection detectors.
package sqlscan

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/extract"
	"github.com/Varunmathiazhagan/final-project-review/internal/metrics"
	"github.com/Varunmathiazhagan/final-project-review/internal/tamper"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique/boolean"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique/errorbased"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique/timebased"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique/union"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// Option configures New.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	client    transport.Client
	detectors []engine.Detector
}

// WithLogger sets the scanner logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer records scan spans with t.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics instruments every request and observes findings and
// progress.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClient replaces the HTTP client built from the config.
func WithClient(c transport.Client) Option {
	return func(o *options) { o.client = c }
}

// WithDetectors replaces the default detector set.
func WithDetectors(d ...engine.Detector) Option {
	return func(o *options) { o.detectors = d }
}

// Detectors returns the detectors run against every injection point, in
// order: error, boolean, time, union.
func Detectors() []engine.Detector {
	return []engine.Detector{
		errorbased.New(),
		boolean.New(),
		timebased.New(),
		union.New(),
	}
}

// Scan is an engine.Scanner together with the resources it owns.
type Scan struct {
	*engine.Scanner
	browser *transport.BrowserClient
}

// Close releases the browser when JavaScript rendering was enabled.
func (s *Scan) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// New validates cfg and builds the scanner. The caller must Close the
// returned Scan.
func New(cfg *engine.ScanConfig, opts ...Option) (*Scan, error) {
	if cfg == nil {
		cfg = engine.DefaultScanConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chain, err := tamper.Parse(cfg.Tampers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
	}

	o := &options{detectors: Detectors()}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		c, err := transport.NewClient(ClientOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("creating HTTP client: %w", err)
		}
		client = c
	}

	scan := &Scan{}
	var pages transport.Client
	if cfg.JSRender {
		scan.browser = transport.NewBrowserClient(transport.BrowserOptions{
			Timeout:            cfg.Timeout,
			UserAgent:          cfg.RobotsUserAgent,
			ProxyURL:           cfg.Proxy,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Headers:            cfg.Headers,
			Cookies:            cfg.Cookies,
			Fallback:           client,
		})
		pages = scan.browser
	}

	if pages == nil {
		pages = client
	}
	// Tampers rewrite probes only; crawl fetches use the discovered URLs.
	probes := tamper.Wrap(client, chain)
	if o.metrics != nil {
		pages = o.metrics.Instrument(pages, metrics.KindPage)
		probes = o.metrics.Instrument(probes, metrics.KindProbe)
	}

	scannerOpts := []engine.ScannerOption{
		engine.WithDetectors(o.detectors...),
		engine.WithExtractor(extract.Extractor(extract.Options{ParamFuzz: cfg.ParamFuzz})),
		engine.WithPageClient(pages),
	}
	if o.logger != nil {
		scannerOpts = append(scannerOpts, engine.WithLogger(o.logger))
	}
	if o.tracer != nil {
		scannerOpts = append(scannerOpts, engine.WithTracer(o.tracer))
	}

	scan.Scanner = engine.NewScanner(probes, cfg, scannerOpts...)
	if o.metrics != nil {
		scan.OnFinding(o.metrics.ObserveFinding)
		scan.OnProgress(o.metrics.ObserveProgress)
	}
	return scan, nil
}

// ClientOptions maps the transport-related config fields to the HTTP
// client. Redirects are not followed by default; crawl fetches opt in per
// request.
func ClientOptions(cfg *engine.ScanConfig) transport.ClientOptions {
	return transport.ClientOptions{
		Timeout:            cfg.Timeout,
		ProxyURL:           cfg.Proxy,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		UserAgent:          cfg.RobotsUserAgent,
		Headers:            cfg.Headers,
		Cookies:            cfg.Cookies,
		MaxRPS:             cfg.MaxRPS,
	}
}
