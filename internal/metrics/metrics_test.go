package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

func TestInstrumentCountsRequests(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	status := http.StatusOK
	base := transport.ClientFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: status}, nil
	})
	c := m.Instrument(base, KindProbe)

	for range 3 {
		_, err := c.Do(context.Background(), &transport.Request{URL: "http://shop.test/"})
		require.NoError(t, err)
	}
	status = http.StatusInternalServerError
	_, err = c.Do(context.Background(), &transport.Request{URL: "http://shop.test/"})
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(KindProbe, "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(KindProbe, "5xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestInstrumentCountsErrors(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	boom := errors.New("connection refused")
	c := m.Instrument(transport.ClientFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, boom
	}), KindPage)

	_, err = c.Do(context.Background(), &transport.Request{URL: "http://shop.test/"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues(KindPage)))
}

func TestInstrumentInFlight(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	var seen float64
	c := m.Instrument(transport.ClientFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		seen = testutil.ToFloat64(m.inFlight)
		return &transport.Response{StatusCode: http.StatusOK}, nil
	}), KindPage)

	_, err = c.Do(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, seen)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestObservers(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveFinding(engine.Finding{Technique: engine.TechniqueError, Risk: engine.RiskCritical})
	m.ObserveFinding(engine.Finding{Technique: engine.TechniqueError, Risk: engine.RiskCritical})
	m.ObserveProgress(engine.ProgressSnapshot{Crawled: 7, Queued: 2, Tested: 4})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.findingsTotal.WithLabelValues("Error", "Critical")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.pagesCrawled))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pagesQueued))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pointsTested))
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveFinding(engine.Finding{Technique: engine.TechniqueUnion, Risk: engine.RiskHigh})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `sqlscan_findings_total{risk="High",technique="Union"} 1`)
	assert.True(t, strings.Contains(string(body), "sqlscan_requests_in_flight"))
}

func TestServeStopsOnCancel(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "0", statusClass(0))
}
