package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

// csvHeader is the first record of every CSV report.
var csvHeader = []string{
	"url", "type", "param", "location", "technique", "risk", "score",
	"payload", "evidence", "dbms", "found_at",
}

// CSVReporter outputs one record per finding, sorted by risk.
type CSVReporter struct{}

// Format returns "csv".
func (r *CSVReporter) Format() string {
	return "csv"
}

// Generate writes the header and the findings to w.
func (r *CSVReporter) Generate(ctx context.Context, sum *engine.Summary, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range sortedFindings(sum.Findings) {
		record := []string{
			f.URL,
			f.Type,
			f.Param,
			f.Location,
			string(f.Technique),
			string(f.Risk),
			strconv.FormatFloat(f.Score, 'f', 1, 64),
			f.Payload,
			f.Evidence,
			f.DBMS,
			f.FoundAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
