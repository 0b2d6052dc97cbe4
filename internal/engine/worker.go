package engine

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Varunmathiazhagan/final-project-review/internal/frontier"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// worker drains the frontier until it is exhausted or ctx is done. Each
// worker issues one request at a time, so at most Concurrency requests
// are in flight across the run.
func (s *Scanner) worker(ctx context.Context, pages, probes transport.Client) {
	var limiter *rate.Limiter
	if s.config.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.config.Delay), 1)
	}

	for {
		entry, ok := s.frontier.Next(ctx)
		if !ok {
			return
		}
		s.process(ctx, limiter, pages, probes, entry)
		s.frontier.Done()
		s.events.publishProgress(s.Snapshot())
	}
}

// process crawls one frontier entry and tests the points found on it.
func (s *Scanner) process(ctx context.Context, limiter *rate.Limiter, pages, probes transport.Client, entry frontier.Entry) {
	// Recover from panics so one bad page does not stop the worker.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker recovered from panic",
				"url", entry.URL,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	ctx, span := s.tracer.Start(ctx, "crawl.page", trace.WithAttributes(
		attribute.String("url", entry.URL),
		attribute.Int("depth", entry.Depth),
	))
	defer span.End()

	if s.config.RespectRobots && s.robots != nil && !s.robots.Allowed(ctx, entry.URL) {
		s.logger.Debug("disallowed by robots.txt", "url", entry.URL)
		span.SetAttributes(attribute.Bool("robots.disallowed", true))
		return
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}

	follow := true
	resp, err := pages.Do(ctx, &transport.Request{
		Method:          http.MethodGet,
		URL:             entry.URL,
		FollowRedirects: &follow,
	})
	if err != nil {
		s.logger.Warn("fetch failed", "url", entry.URL, "depth", entry.Depth, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	s.logger.Debug("page fetched", "url", entry.URL, "depth", entry.Depth, "status", resp.StatusCode)

	pageURL := entry.URL
	if resp.URL != "" {
		pageURL = resp.URL
	}
	if !s.inScope(pageURL) {
		s.logger.Debug("redirected off scope", "url", entry.URL, "location", pageURL)
		return
	}
	if !resp.IsHTML() {
		return
	}

	content := s.extract(pageURL, resp)

	if entry.Depth < s.config.MaxDepth {
		for _, link := range content.Links {
			if s.inScope(link) {
				s.frontier.Enqueue(link, entry.Depth+1, entry.URL)
			}
		}
	}

	for i := range content.Points {
		p := content.Points[i]
		if !s.inScope(p.URL) || !s.results.claimPoint(p.Key()) {
			continue
		}
		if p.Source == "" {
			p.Source = pageURL
		}
		s.testPoint(ctx, probes, p)
	}
}

// testPoint fetches the baseline of p and runs every detector against it
// in order.
func (s *Scanner) testPoint(ctx context.Context, probes transport.Client, p InjectionPoint) {
	if ctx.Err() != nil {
		return
	}
	ctx, span := s.tracer.Start(ctx, "test.point", trace.WithAttributes(
		attribute.String("url", p.URL),
		attribute.String("param", p.Param),
		attribute.String("location", p.Location.String()),
	))
	defer span.End()

	baseline, err := probes.Do(ctx, p.BaselineRequest())
	if err != nil {
		s.logger.Debug("baseline failed", "url", p.URL, "param", p.Param, "error", err)
		return
	}
	p.Baseline = baseline

	for _, d := range s.detectors {
		if ctx.Err() != nil {
			break
		}
		findings, err := s.runDetector(ctx, d, probes, &p)
		if err != nil {
			s.logger.Debug("detector error",
				"technique", d.Technique(),
				"url", p.URL,
				"param", p.Param,
				"error", err,
			)
			continue
		}
		for _, f := range findings {
			if !s.results.record(f) {
				continue
			}
			s.logger.Info("injection found",
				"url", f.URL,
				"param", f.Param,
				"technique", f.Technique,
				"risk", f.Risk,
			)
			s.events.publishFinding(f)
		}
	}
	s.results.pointTested()
}

// runDetector calls d with panic recovery.
func (s *Scanner) runDetector(ctx context.Context, d Detector, probes transport.Client, p *InjectionPoint) (findings []Finding, err error) {
	ctx, span := s.tracer.Start(ctx, "detector."+string(d.Technique()))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector %s panicked: %v", d.Technique(), r)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("findings", len(findings)))
	}()

	return d.Test(ctx, &ProbeRequest{
		Point:  p,
		Config: s.config,
		Client: probes,
	})
}
