// Package report renders a finished scan as terminal text, JSON or CSV.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the formatted scan summary to w.
	Generate(ctx context.Context, sum *engine.Summary, w io.Writer) error
}

// Formats lists the names accepted by New.
var Formats = []string{"text", "json", "csv"}

// New creates a reporter by format name. The format name is
// case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	case "csv":
		return &CSVReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

// sortedFindings orders findings by risk, keeping discovery order within
// a risk level.
func sortedFindings(findings []engine.Finding) []engine.Finding {
	out := make([]engine.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Risk.Rank() < out[j].Risk.Rank()
	})
	return out
}

// countAffectedParameters counts distinct (endpoint, parameter) pairs with
// at least one finding.
func countAffectedParameters(findings []engine.Finding) int {
	seen := make(map[string]struct{})
	for _, f := range findings {
		key := f.Key()
		key = key[:strings.LastIndexByte(key, '|')]
		seen[key] = struct{}{}
	}
	return len(seen)
}

// countByRisk counts findings per risk level.
func countByRisk(findings []engine.Finding) map[engine.Risk]int {
	counts := make(map[engine.Risk]int, 4)
	for _, f := range findings {
		counts[f.Risk]++
	}
	return counts
}

var riskOrder = []engine.Risk{engine.RiskCritical, engine.RiskHigh, engine.RiskMedium, engine.RiskLow}
