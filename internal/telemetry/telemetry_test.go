package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "x")
	if span.SpanContext().IsValid() {
		t.Error("expected a no-op span without an endpoint")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestScannerSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p := NewWithExporter(exporter, Options{ServiceVersion: "test"})

	client := transport.ClientFunc(func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		return &transport.Response{
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": {"text/html"}},
			Body:       []byte("<html><body>home</body></html>"),
			URL:        req.URL,
		}, nil
	})
	cfg := engine.DefaultScanConfig()
	cfg.StartURL = "http://shop.test/?id=1"
	cfg.Delay = 0
	cfg.RespectRobots = false
	cfg.Concurrency = 1

	extract := func(pageURL string, _ *transport.Response) engine.PageContent {
		return engine.PageContent{Points: []engine.InjectionPoint{{
			URL: pageURL, Method: http.MethodGet, Param: "id", Location: engine.LocationQuery, Value: "1",
		}}}
	}
	s := engine.NewScanner(client, cfg,
		engine.WithTracer(p.Tracer()),
		engine.WithExtractor(extract),
		engine.WithDetectors(noopDetector{}),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The in-memory exporter drops its spans on Shutdown, so read them after
	// a flush.
	if err := p.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	names := map[string]int{}
	var scan sdktrace.ReadOnlySpan
	for _, span := range exporter.GetSpans().Snapshots() {
		names[span.Name()]++
		if span.Name() == "scan" {
			scan = span
		}
	}
	for _, want := range []string{"scan", "crawl.page", "test.point", "detector.Error"} {
		if names[want] != 1 {
			t.Errorf("span %q recorded %d times, want 1 (all: %v)", want, names[want], names)
		}
	}
	if scan == nil {
		t.Fatal("no scan span")
	}
	if got := scan.Resource().Attributes(); len(got) == 0 {
		t.Error("scan span has no resource attributes")
	}
}

type noopDetector struct{}

func (noopDetector) Technique() engine.Technique { return engine.TechniqueError }

func (noopDetector) Test(context.Context, *engine.ProbeRequest) ([]engine.Finding, error) {
	return nil, nil
}
