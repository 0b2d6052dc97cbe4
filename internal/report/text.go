package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 60
)

var riskColors = map[engine.Risk]lipgloss.Color{
	engine.RiskCritical: lipgloss.Color("#FF0000"),
	engine.RiskHigh:     lipgloss.Color("#FF6B6B"),
	engine.RiskMedium:   lipgloss.Color("#FFD93D"),
	engine.RiskLow:      lipgloss.Color("#6BCB77"),
}

// TextReporter outputs terminal text. Colors are used only when w is a
// terminal that supports them.
type TextReporter struct {
	// Verbose adds the visited URL list and the fix snippet of each finding.
	Verbose bool
	// NoColor disables styling even on a color terminal.
	NoColor bool
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

type textStyles struct {
	title, label, muted lipgloss.Style
	risk                func(engine.Risk) lipgloss.Style
}

func (r *TextReporter) styles(w io.Writer) textStyles {
	re := lipgloss.NewRenderer(w)
	if r.NoColor {
		re.SetColorProfile(termenv.Ascii)
	}
	return textStyles{
		title: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		label: re.NewStyle().Bold(true),
		muted: re.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		risk: func(risk engine.Risk) lipgloss.Style {
			return re.NewStyle().Bold(true).Foreground(riskColors[risk])
		},
	}
}

// Generate writes formatted scan results to w.
func (r *TextReporter) Generate(ctx context.Context, sum *engine.Summary, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st := r.styles(w)
	b := &strings.Builder{}
	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := st.muted.Render(strings.Repeat(singleLine, lineWidth))

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, st.title.Render("sqlscan - SQL Injection Scan Results"))
	fmt.Fprintln(b, doubleBar)

	fmt.Fprintf(b, "Target:   %s\n", sum.StartURL)
	if sum.ID != "" {
		fmt.Fprintf(b, "Scan ID:  %s\n", sum.ID)
	}
	fmt.Fprintf(b, "Duration: %.1fs\n", sum.Duration().Seconds())
	fmt.Fprintf(b, "Crawled:  %d page(s)\n", sum.Snapshot.Crawled)
	fmt.Fprintf(b, "Tested:   %d injection point(s)\n", sum.Snapshot.Tested)
	fmt.Fprintf(b, "Requests: %d\n", sum.Snapshot.Requests)
	if sum.Cancelled {
		fmt.Fprintln(b, st.risk(engine.RiskMedium).Render("Scan cancelled: results are partial."))
	}

	findings := sortedFindings(sum.Findings)
	if len(findings) == 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "No SQL injection found.")
	}
	for _, f := range findings {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "%s SQL Injection (%s)\n", st.risk(f.Risk).Render("["+string(f.Risk)+"]"), f.Technique)
		fmt.Fprintf(b, "  %s %s %s\n", st.label.Render("URL:      "), f.Type, f.URL)
		fmt.Fprintf(b, "  %s %s (%s)\n", st.label.Render("Parameter:"), f.Param, f.Location)
		fmt.Fprintf(b, "  %s %.1f\n", st.label.Render("Score:    "), f.Score)
		if f.DBMS != "" {
			fmt.Fprintf(b, "  %s %s\n", st.label.Render("DBMS:     "), f.DBMS)
		}
		fmt.Fprintf(b, "  %s %s\n", st.label.Render("Payload:  "), f.Payload)
		fmt.Fprintf(b, "  %s %s\n", st.label.Render("Evidence: "), f.Evidence)
		if r.Verbose && f.FixSnippet != "" {
			fmt.Fprintf(b, "  %s\n", st.label.Render("Fix:"))
			for _, line := range strings.Split(strings.TrimRight(f.FixSnippet, "\n"), "\n") {
				fmt.Fprintf(b, "    %s\n", st.muted.Render(line))
			}
		}
	}

	if r.Verbose && len(sum.Visited) > 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "Visited:")
		for _, u := range sum.Visited {
			fmt.Fprintf(b, "  %s\n", u)
		}
	}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d finding(s) in %d parameter(s)", len(findings), countAffectedParameters(findings))
	if len(findings) > 0 {
		counts := countByRisk(findings)
		var parts []string
		for _, risk := range riskOrder {
			if n := counts[risk]; n > 0 {
				parts = append(parts, st.risk(risk).Render(fmt.Sprintf("%d %s", n, risk)))
			}
		}
		fmt.Fprintf(b, " [%s]", strings.Join(parts, ", "))
	}
	fmt.Fprintln(b)
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}
