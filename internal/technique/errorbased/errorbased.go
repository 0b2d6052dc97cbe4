// Package errorbased detects injection by breaking the SQL syntax around a
// parameter and looking for database error output that the unmodified
// request did not produce.
package errorbased

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Varunmathiazhagan/final-project-review/internal/detector"
	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/payload"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique"
)

// ErrorBased implements the error-based detector.
type ErrorBased struct {
	breakers []string
}

var _ engine.Detector = (*ErrorBased)(nil)

// New creates a detector using the default syntax breakers.
func New() *ErrorBased {
	return &ErrorBased{breakers: payload.Breakers()}
}

// Technique returns engine.TechniqueError.
func (e *ErrorBased) Technique() engine.Technique {
	return engine.TechniqueError
}

// Test appends each breaker to the original value. A database error
// signature in the probe that is absent from the baseline is a finding;
// failing that, a 500 status where the baseline was not a server error is
// reported as a weaker finding.
func (e *ErrorBased) Test(ctx context.Context, req *engine.ProbeRequest) ([]engine.Finding, error) {
	if err := technique.Check(req); err != nil {
		return nil, err
	}
	base := req.Point.Baseline

	var (
		statusBreaker string
		statusCode    int
		sent          int
		lastErr       error
	)
	for _, b := range e.breakers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := technique.SendValue(ctx, req, req.Point.Value+b)
		if err != nil {
			lastErr = err
			continue
		}
		sent++

		if matches := detector.NewSQLErrors(base.Body, resp.Body); len(matches) > 0 {
			m := matches[0]
			sig := engine.Signal{DBMS: m.DBMS, VendorError: m.Vendor()}
			return []engine.Finding{
				engine.NewFinding(*req.Point, engine.TechniqueError, sig, b, technique.Evidence(resp.Body, m.Text)),
			}, nil
		}

		if statusBreaker == "" && resp.StatusCode == http.StatusInternalServerError &&
			base.StatusCode < http.StatusInternalServerError {
			statusBreaker = b
			statusCode = resp.StatusCode
		}
	}

	if statusBreaker != "" {
		evidence := fmt.Sprintf("HTTP %d for breaker %q, baseline HTTP %d", statusCode, statusBreaker, base.StatusCode)
		return []engine.Finding{
			engine.NewFinding(*req.Point, engine.TechniqueError, engine.Signal{StatusOnly: true}, statusBreaker, evidence),
		}, nil
	}
	if sent == 0 && lastErr != nil {
		return nil, fmt.Errorf("error-based probes failed: %w", lastErr)
	}
	return nil, nil
}
