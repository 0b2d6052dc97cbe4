package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

// SchemaVersion is the version of the JSON report layout.
const SchemaVersion = "1.0"

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

type jsonOutput struct {
	SchemaVersion string           `json:"schema_version"`
	Tool          string           `json:"tool"`
	Scan          jsonScan         `json:"scan"`
	Findings      []engine.Finding `json:"findings"`
	Summary       jsonSummary      `json:"summary"`
	Visited       []string         `json:"visited"`
}

type jsonScan struct {
	ID              string    `json:"id,omitempty"`
	StartURL        string    `json:"start_url"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Cancelled       bool      `json:"cancelled"`
	Crawled         int       `json:"crawled"`
	Tested          int       `json:"tested"`
	TotalRequests   int       `json:"total_requests"`
}

type jsonSummary struct {
	TotalFindings      int            `json:"total_findings"`
	AffectedParameters int            `json:"affected_parameters"`
	ByRisk             map[string]int `json:"by_risk"`
}

// Generate writes JSON scan results to w. Findings keep discovery order.
func (r *JSONReporter) Generate(ctx context.Context, sum *engine.Summary, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	output := jsonOutput{
		SchemaVersion: SchemaVersion,
		Tool:          "sqlscan",
		Scan: jsonScan{
			ID:              sum.ID,
			StartURL:        sum.StartURL,
			StartTime:       sum.StartedAt,
			EndTime:         sum.FinishedAt,
			DurationSeconds: sum.Duration().Seconds(),
			Cancelled:       sum.Cancelled,
			Crawled:         sum.Snapshot.Crawled,
			Tested:          sum.Snapshot.Tested,
			TotalRequests:   sum.Snapshot.Requests,
		},
		Findings: make([]engine.Finding, 0, len(sum.Findings)),
		Summary: jsonSummary{
			TotalFindings:      len(sum.Findings),
			AffectedParameters: countAffectedParameters(sum.Findings),
			ByRisk:             make(map[string]int),
		},
		Visited: sum.Visited,
	}
	output.Findings = append(output.Findings, sum.Findings...)
	for risk, n := range countByRisk(sum.Findings) {
		output.Summary.ByRisk[string(risk)] = n
	}
	if output.Visited == nil {
		output.Visited = []string{}
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(output)
}
