// Package technique holds helpers shared by the injection detectors
// (error-based, boolean-based, time-based and union-based).
package technique

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/payload"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// ErrNoBaseline is returned when a detector is given a point without a
// baseline response.
var ErrNoBaseline = errors.New("injection point has no baseline response")

// evidenceContext is how much text around a match Evidence keeps.
const evidenceContext = 80

// Check validates the parts of req every detector relies on.
func Check(req *engine.ProbeRequest) error {
	if req == nil || req.Point == nil || req.Client == nil {
		return errors.New("incomplete probe request")
	}
	if req.Point.Baseline == nil {
		return ErrNoBaseline
	}
	return nil
}

// Config returns req.Config, or the defaults when it is nil.
func Config(req *engine.ProbeRequest) *engine.ScanConfig {
	if req.Config != nil {
		return req.Config
	}
	return engine.DefaultScanConfig()
}

// Send submits the original value followed by p.
func Send(ctx context.Context, req *engine.ProbeRequest, p *payload.Payload) (*transport.Response, error) {
	return SendValue(ctx, req, p.Inject(req.Point.Value))
}

// SendValue submits value in place of the point's parameter.
func SendValue(ctx context.Context, req *engine.ProbeRequest, value string) (*transport.Response, error) {
	return req.Client.Do(ctx, req.Point.Request(value))
}

// Timed sends r and measures the wall-clock time until the response is
// read.
func Timed(ctx context.Context, c transport.Client, r *transport.Request) (time.Duration, *transport.Response, error) {
	start := time.Now()
	resp, err := c.Do(ctx, r)
	return time.Since(start), resp, err
}

// Evidence returns the text around the first occurrence of match in body,
// collapsed to one line.
func Evidence(body []byte, match string) string {
	text := string(body)
	i := strings.Index(text, match)
	if i < 0 {
		return Truncate(match, 2*evidenceContext)
	}
	start := max(i-evidenceContext, 0)
	end := min(i+len(match)+evidenceContext, len(text))
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.Join(strings.Fields(text[start:end]), " ")
}

// Truncate shortens s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
