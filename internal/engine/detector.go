package engine

import (
	"context"

	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// Detector tests one injection point with one technique. Detectors only
// send probes. They never touch crawl state.
type Detector interface {
	Technique() Technique
	Test(ctx context.Context, req *ProbeRequest) ([]Finding, error)
}

// ProbeRequest contains everything a detector needs to test a point.
type ProbeRequest struct {
	Point  *InjectionPoint
	Config *ScanConfig
	Client transport.Client
}

// PageContent is what the extractor found on one page.
type PageContent struct {
	Links  []string
	Points []InjectionPoint
}

// Extractor turns a fetched page into links and injection points.
type Extractor func(pageURL string, resp *transport.Response) PageContent

// RobotsChecker answers whether a URL may be crawled.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}
