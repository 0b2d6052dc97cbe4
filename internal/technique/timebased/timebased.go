// Package timebased detects blind injection by response timing.
//
// A conditional sleep is injected for each supported engine, e.g.
// IF(1=1,SLEEP(n),0) for MySQL:
//
//   - Delayed response for the true condition and none for the false one:
//     the condition was evaluated server-side, so the parameter is injectable.
//   - Both delayed or neither: network noise or no SQL context.
//
// This is the technique of last resort when no error or content difference
// is observable. It is only run when time-based testing is enabled.
package timebased

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Varunmathiazhagan/final-project-review/internal/dbms"
	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/payload"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique"
)

// baselineSamples is the number of requests averaged for baseline timing.
const baselineSamples = 2

// TimeBased implements the time-based blind detector.
type TimeBased struct {
	dialects   []dbms.DBMS
	boundaries []payload.Boundary
}

var _ engine.Detector = (*TimeBased)(nil)

// New creates a TimeBased detector probing every supported engine.
func New() *TimeBased {
	return &TimeBased{
		dialects:   dbms.All(),
		boundaries: payload.DetectionBoundaries(),
	}
}

// Technique returns engine.TechniqueTime.
func (t *TimeBased) Technique() engine.Technique {
	return engine.TechniqueTime
}

// sleepSeconds is the server-side sleep for a threshold: the threshold
// rounded up to whole seconds, plus one.
func sleepSeconds(threshold time.Duration) int {
	return int(math.Ceil(threshold.Seconds())) + 1
}

// Test tests whether the parameter is injectable using response timing.
//
// Algorithm:
//  1. Measure the mean baseline response time (2 samples).
//  2. For each engine and boundary send:
//     a. delay probe (condition 1=1): elapsed - baseline >= threshold.
//     b. control probe (condition 1=2): elapsed - baseline < threshold.
//     c. a second delay probe to rule out one-off network lag.
func (t *TimeBased) Test(ctx context.Context, req *engine.ProbeRequest) ([]engine.Finding, error) {
	if err := technique.Check(req); err != nil {
		return nil, err
	}
	cfg := technique.Config(req)
	if !cfg.TimeBased {
		return nil, nil
	}
	threshold := cfg.TimeThreshold
	if threshold <= 0 {
		threshold = engine.DefaultScanConfig().TimeThreshold
	}
	secs := sleepSeconds(threshold)
	timeout := time.Duration(0)
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout + time.Duration(secs)*time.Second
	}

	base, err := t.baseline(ctx, req, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("measuring baseline: %w", err)
	}

	trueCond, falseCond := payload.Conditions()
	for _, d := range t.dialects {
		for _, bd := range t.boundaries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			delay := t.build(bd, d, d.DelayClause(trueCond, secs))
			control := t.build(bd, d, d.DelayClause(falseCond, secs))

			d1, err := t.measure(ctx, req, delay, timeout)
			if err != nil || d1-base < threshold {
				continue
			}
			c, err := t.measure(ctx, req, control, timeout)
			if err != nil || c-base >= threshold {
				// The false condition is slow too: server lag, not injection.
				continue
			}
			d2, err := t.measure(ctx, req, delay, timeout)
			if err != nil || d2-base < threshold {
				continue
			}

			observed := min(d1, d2) - base
			evidence := fmt.Sprintf("%s delay: %s and %s over a %s baseline, control %s (threshold %s)",
				d.Name(), round(d1), round(d2), round(base), round(c), threshold)
			sig := engine.Signal{DBMS: d.Name(), Delay: observed, Threshold: threshold}
			return []engine.Finding{
				engine.NewFinding(*req.Point, engine.TechniqueTime, sig, delay.String(), evidence),
			}, nil
		}
	}
	return nil, ctx.Err()
}

func (t *TimeBased) build(bd payload.Boundary, d dbms.DBMS, core string) *payload.Payload {
	return payload.NewBuilder().
		WithBoundary(bd).
		WithCore(core).
		WithTechnique(string(engine.TechniqueTime)).
		WithDBMS(d.Name()).
		Build()
}

// baseline returns the mean duration of fresh requests with the original
// value.
func (t *TimeBased) baseline(ctx context.Context, req *engine.ProbeRequest, timeout time.Duration) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < baselineSamples; i++ {
		r := req.Point.BaselineRequest()
		r.Timeout = timeout
		d, _, err := technique.Timed(ctx, req.Client, r)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total / baselineSamples, nil
}

func (t *TimeBased) measure(ctx context.Context, req *engine.ProbeRequest, p *payload.Payload, timeout time.Duration) (time.Duration, error) {
	r := req.Point.Request(p.Inject(req.Point.Value))
	r.Timeout = timeout
	d, _, err := technique.Timed(ctx, req.Client, r)
	return d, err
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
