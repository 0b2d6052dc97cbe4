// Package metrics exposes scan metrics for Prometheus scraping: request
// counters and latencies from an instrumented transport client, finding
// counters, and crawl progress gauges fed by the scanner's observers.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

const namespace = "sqlscan"

// Request kinds used as the "kind" label.
const (
	KindPage  = "page"
	KindProbe = "probe"
)

// Metrics holds the collectors of one process. It uses its own registry
// so it never pollutes the global one.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	findingsTotal   *prometheus.CounterVec
	pagesCrawled    prometheus.Gauge
	pagesQueued     prometheus.Gauge
	pointsTested    prometheus.Gauge
}

// New creates and registers all collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests sent, by kind and response status class.",
		}, []string{"kind", "status"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "HTTP requests that failed without a response.",
		}, []string{"kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Response time distribution in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"kind"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently in flight.",
		}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Confirmed injection findings, by technique and risk.",
		}, []string{"technique", "risk"}),
		pagesCrawled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_crawled",
			Help:      "Pages dequeued by the crawler in the current scan.",
		}),
		pagesQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_queued",
			Help:      "Pages waiting in the crawl frontier.",
		}),
		pointsTested: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "injection_points_tested",
			Help:      "Injection points handed to the detectors in the current scan.",
		}),
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.errorsTotal,
		m.requestDuration,
		m.inFlight,
		m.findingsTotal,
		m.pagesCrawled,
		m.pagesQueued,
		m.pointsTested,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Instrument wraps c so every request is counted and timed under kind.
func (m *Metrics) Instrument(c transport.Client, kind string) transport.Client {
	return transport.ClientFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		resp, err := c.Do(ctx, req)
		m.requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			m.errorsTotal.WithLabelValues(kind).Inc()
			return nil, err
		}
		m.requestsTotal.WithLabelValues(kind, statusClass(resp.StatusCode)).Inc()
		return resp, nil
	})
}

// ObserveFinding counts f. It has the signature of a finding observer.
func (m *Metrics) ObserveFinding(f engine.Finding) {
	m.findingsTotal.WithLabelValues(string(f.Technique), string(f.Risk)).Inc()
}

// ObserveProgress updates the crawl gauges. It has the signature of a
// progress observer.
func (m *Metrics) ObserveProgress(s engine.ProgressSnapshot) {
	m.pagesCrawled.Set(float64(s.Crawled))
	m.pagesQueued.Set(float64(s.Queued))
	m.pointsTested.Set(float64(s.Tested))
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusClass buckets a status code as "2xx", "3xx" and so on.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
