package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/history"
	"github.com/Varunmathiazhagan/final-project-review/internal/metrics"
	"github.com/Varunmathiazhagan/final-project-review/internal/report"
	"github.com/Varunmathiazhagan/final-project-review/internal/sqlscan"
	"github.com/Varunmathiazhagan/final-project-review/internal/tamper"
	"github.com/Varunmathiazhagan/final-project-review/internal/telemetry"
)

// errNoURL is returned when neither --url nor the config file names a
// start URL.
var errNoURL = errors.New("target URL is required (use --url or -u)")

// scanFlags holds the raw flag values of the scan command.
type scanFlags struct {
	url             string
	depth           int
	concurrency     int
	delay           time.Duration
	noRobots        bool
	booleanRounds   int
	unionMaxColumns int
	timeBased       bool
	timeThreshold   time.Duration
	paramFuzz       bool
	userAgent       string
	jsRender        bool
	verbose         bool
	quiet           bool
	timeout         time.Duration
	headers         []string
	cookie          string
	proxy           string
	insecure        bool
	maxPages        int
	maxRPS          float64
	tampers         []string

	configPath   string
	format       string
	output       string
	noColor      bool
	historyPath  string
	metricsAddr  string
	otlpEndpoint string
	otlpInsecure bool
}

func newScanCmd() *cobra.Command {
	cmd, _ := newScanCommand()
	return cmd
}

// newScanCommand returns the scan command and the flag values it binds.
func newScanCommand() (*cobra.Command, *scanFlags) {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Crawl a site and test every discovered parameter for SQL injection",
		Long: `Scan crawls the target breadth-first from --url, staying on the start host,
and tests every query, form and cookie parameter it finds. Ctrl+C stops the
scan; findings recorded so far are still reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, f)
		},
	}

	def := engine.DefaultScanConfig()
	fl := cmd.Flags()

	// Target and crawl
	fl.StringVarP(&f.url, "url", "u", "", "Start URL (e.g., http://target.com/)")
	fl.IntVar(&f.depth, "depth", def.MaxDepth, "Maximum crawl depth (0 = start URL only)")
	fl.IntVar(&f.concurrency, "concurrency", def.Concurrency, "Number of concurrent workers")
	fl.DurationVar(&f.delay, "delay", def.Delay, "Minimum delay between page fetches per worker")
	fl.BoolVar(&f.noRobots, "no-robots", false, "Ignore robots.txt")
	fl.StringVar(&f.userAgent, "user-agent", def.RobotsUserAgent, "User-Agent sent and matched against robots.txt")
	fl.IntVar(&f.maxPages, "max-pages", def.MaxPages, "Stop crawling after this many pages (0 = unlimited)")
	fl.BoolVar(&f.jsRender, "js-render", false, "Render pages in headless Chrome before extraction")

	// Detection
	fl.IntVar(&f.booleanRounds, "boolean-rounds", def.BooleanRounds, "Consistent TRUE/FALSE rounds required for a boolean finding")
	fl.IntVar(&f.unionMaxColumns, "union-max-columns", def.UnionMaxColumns, "Widest UNION SELECT to try")
	fl.BoolVar(&f.timeBased, "time-based", false, "Enable time-based blind probes")
	fl.DurationVar(&f.timeThreshold, "time-threshold", def.TimeThreshold, "Extra latency that counts as an injected delay")
	fl.BoolVar(&f.paramFuzz, "param-fuzz", false, "Also test common parameter names not found on the page")
	fl.StringSliceVar(&f.tampers, "tamper", nil, "Payload rewrites applied in order ("+strings.Join(tamper.Available(), ", ")+")")

	// Connection
	fl.DurationVar(&f.timeout, "timeout", def.Timeout, "Per-request timeout")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "Extra header (repeatable, e.g., -H 'X-Custom: value')")
	fl.StringVar(&f.cookie, "cookie", "", "Cookie string (e.g., PHPSESSID=abc123; lang=en)")
	fl.StringVar(&f.proxy, "proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	fl.BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	fl.Float64Var(&f.maxRPS, "max-rps", def.MaxRPS, "Global request rate limit (0 = unlimited)")

	// Output
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging and verbose report")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Only log errors")
	fl.StringVar(&f.configPath, "config", "", "YAML config file; explicit flags override its values")
	fl.StringVarP(&f.format, "format", "f", "text", "Report format ("+strings.Join(report.Formats, ", ")+")")
	fl.StringVarP(&f.output, "output", "o", "", "Write the report to this file instead of stdout")
	fl.BoolVar(&f.noColor, "no-color", false, "Disable colors in the text report")
	fl.StringVar(&f.historyPath, "history", "", "Archive the finished run in this SQLite database")

	// Observability
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")
	fl.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP gRPC endpoint (e.g., localhost:4317)")
	fl.BoolVar(&f.otlpInsecure, "otlp-insecure", true, "Use a plaintext connection to the OTLP endpoint")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	return cmd, f
}

// buildConfig layers defaults, the config file and explicitly set flags.
func buildConfig(cmd *cobra.Command, f *scanFlags) (*engine.ScanConfig, error) {
	cfg := engine.DefaultScanConfig()
	if f.configPath != "" {
		fc, err := loadConfigFile(f.configPath)
		if err != nil {
			return nil, err
		}
		fc.apply(cfg)
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.StartURL = f.url
	}
	if changed("depth") {
		cfg.MaxDepth = f.depth
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("delay") {
		cfg.Delay = f.delay
	}
	if changed("no-robots") {
		cfg.RespectRobots = !f.noRobots
	}
	if changed("boolean-rounds") {
		cfg.BooleanRounds = f.booleanRounds
	}
	if changed("union-max-columns") {
		cfg.UnionMaxColumns = f.unionMaxColumns
	}
	if changed("time-based") {
		cfg.TimeBased = f.timeBased
	}
	if changed("time-threshold") {
		cfg.TimeThreshold = f.timeThreshold
	}
	if changed("param-fuzz") {
		cfg.ParamFuzz = f.paramFuzz
	}
	if changed("user-agent") {
		cfg.RobotsUserAgent = f.userAgent
	}
	if changed("js-render") {
		cfg.JSRender = f.jsRender
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if changed("quiet") {
		cfg.Quiet = f.quiet
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("header") {
		cfg.Headers = mergeMaps(cfg.Headers, parseHeaders(f.headers))
	}
	if changed("cookie") {
		cfg.Cookies = mergeMaps(cfg.Cookies, parseCookieString(f.cookie))
	}
	if changed("proxy") {
		cfg.Proxy = f.proxy
	}
	if changed("insecure") {
		cfg.InsecureSkipVerify = f.insecure
	}
	if changed("max-pages") {
		cfg.MaxPages = f.maxPages
	}
	if changed("max-rps") {
		cfg.MaxRPS = f.maxRPS
	}
	if changed("tamper") {
		cfg.Tampers = f.tampers
	}

	if strings.TrimSpace(cfg.StartURL) == "" {
		return nil, errNoURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := tamper.Parse(cfg.Tampers...); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// runScan wires the scanner from the flags, runs it until completion or
// Ctrl+C and writes the report.
func runScan(cmd *cobra.Command, f *scanFlags) error {
	stderr := cmd.ErrOrStderr()

	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}
	reporter, err := report.New(f.format)
	if err != nil {
		return err
	}
	if tr, ok := reporter.(*report.TextReporter); ok {
		tr.Verbose = cfg.Verbose
		tr.NoColor = f.noColor
	}
	if !cfg.Quiet {
		fmt.Fprintln(stderr, disclaimer)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	logger := engine.NewLogger(stderr, cfg)
	opts := []sqlscan.Option{sqlscan.WithLogger(logger)}

	if f.metricsAddr != "" {
		m, err := metrics.New()
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		opts = append(opts, sqlscan.WithMetrics(m))
		go func() {
			if err := m.Serve(ctx, f.metricsAddr); err != nil {
				logger.Error("metrics server stopped", "addr", f.metricsAddr, "error", err)
			}
		}()
	}

	tp, err := telemetry.New(telemetry.Options{
		Endpoint:       f.otlpEndpoint,
		ServiceVersion: version,
		Insecure:       f.otlpInsecure,
	})
	if err != nil {
		return fmt.Errorf("creating tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()
	if f.otlpEndpoint != "" {
		opts = append(opts, sqlscan.WithTracer(tp.Tracer()))
	}

	scan, err := sqlscan.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer scan.Close()

	if !cfg.Quiet {
		scan.OnFinding(func(fd engine.Finding) {
			fmt.Fprintf(stderr, "[+] [%s] %s injection: %s %s param %q (%s)\n",
				fd.Risk, fd.Technique, fd.Type, fd.URL, fd.Param, fd.Location)
		})
	}
	if cfg.Verbose {
		scan.OnProgress(func(p engine.ProgressSnapshot) {
			fmt.Fprintf(stderr, "[*] crawled=%d queued=%d tested=%d findings=%d requests=%d\n",
				p.Crawled, p.Queued, p.Tested, p.Findings, p.Requests)
		})
	}

	if !cfg.Quiet {
		fmt.Fprintf(stderr, "[*] Starting scan %s against: %s\n", scan.ID(), cfg.StartURL)
	}
	if err := scan.Run(ctx); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	sum := scan.Summary()
	if sum.Cancelled {
		fmt.Fprintln(stderr, "[!] Scan interrupted, reporting partial results")
	}

	if f.historyPath != "" {
		if err := archive(f.historyPath, &sum); err != nil {
			logger.Error("archiving scan failed", "path", f.historyPath, "error", err)
		} else if !cfg.Quiet {
			fmt.Fprintf(stderr, "[*] Saved run %s to %s\n", sum.ID, f.historyPath)
		}
	}

	return writeReport(cmd.OutOrStdout(), f.output, reporter, &sum)
}

// archive saves sum to the history database at path.
func archive(path string, sum *engine.Summary) error {
	store, err := history.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(context.Background(), sum)
}

// writeReport renders sum to the file at path, or to stdout when path is
// empty. The report is written even after cancellation.
func writeReport(stdout io.Writer, path string, reporter report.Reporter, sum *engine.Summary) error {
	out := stdout
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", path, err)
		}
		defer file.Close()
		out = file
	}
	if err := reporter.Generate(context.Background(), sum, out); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}

// parseCookieString parses a cookie header string (e.g., "name1=val1; name2=val2")
// into a map of name->value pairs.
func parseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	if raw == "" {
		return cookies
	}
	pairs := strings.Split(raw, ";")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			cookies[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cookies
}

// parseHeaders parses header strings (e.g., "X-Custom: value") into a map.
func parseHeaders(rawHeaders []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range rawHeaders {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
