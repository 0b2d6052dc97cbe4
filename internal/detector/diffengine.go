package detector

import (
	"regexp"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// DefaultSimilarity is the ratio at or above which two bodies count as the
// same page.
const DefaultSimilarity = 0.95

// DiffEngine compares HTTP responses to detect behavioral differences.
type DiffEngine struct {
	DynamicPatterns []*regexp.Regexp
	Threshold       float64
}

// NewDiffEngine creates a DiffEngine with default dynamic content patterns.
// These patterns strip session IDs, CSRF tokens, timestamps, and other
// values that change between requests without meaning anything for
// injection.
func NewDiffEngine() *DiffEngine {
	return &DiffEngine{
		Threshold: DefaultSimilarity,
		DynamicPatterns: []*regexp.Regexp{
			// CSRF tokens in hidden fields or meta tags
			regexp.MustCompile(`(?i)(csrf[_-]?token|_token|authenticity_token)([^"]*"[^"]*"|[^']*'[^']*'|=[^\s&]+)`),
			// Session identifiers (PHPSESSID, JSESSIONID, ...)
			regexp.MustCompile(`(?i)(sess(ion)?[_-]?(id)?|phpsessid|jsessionid|sid)\s*[:=]\s*[^\s<"'&]+`),
			regexp.MustCompile(`(?i)\bsess[_-][a-zA-Z0-9]+\b`),
			// ISO 8601 timestamps
			regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[^\s<"']*`),
			// Clock times such as "generated at 12:04:55"
			regexp.MustCompile(`\b\d{1,2}:\d{2}:\d{2}\b`),
			// Unix timestamps (10-13 digit numbers)
			regexp.MustCompile(`\b\d{10,13}\b`),
			// Long hex strings (hashes, nonces)
			regexp.MustCompile(`[0-9a-fA-F]{32,}`),
			// UUIDs
			regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
		},
	}
}

// stripDynamic removes dynamic content from a string using DynamicPatterns.
func (d *DiffEngine) stripDynamic(s string) string {
	for _, pat := range d.DynamicPatterns {
		s = pat.ReplaceAllString(s, "")
	}
	return s
}

// Fingerprint hashes the body after dynamic content is stripped. Equal
// fingerprints mean the pages are the same for comparison purposes.
func (d *DiffEngine) Fingerprint(body []byte) uint64 {
	return murmur3.Sum64([]byte(d.stripDynamic(string(body))))
}

// Ratio computes a similarity ratio between two byte slices (0.0 to 1.0).
// Dynamic content is stripped first, then lines are matched.
func (d *DiffEngine) Ratio(a, b []byte) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	sa := d.stripDynamic(string(a))
	sb := d.stripDynamic(string(b))
	if sa == sb {
		return 1.0
	}

	linesA := strings.Split(sa, "\n")
	linesB := strings.Split(sb, "\n")

	// Single-line bodies compare by shared prefix and suffix instead, so
	// a one-word change in a long line is not a total mismatch.
	if len(linesA) == 1 && len(linesB) == 1 {
		return charRatio(sa, sb)
	}

	counts := make(map[string]int, len(linesB))
	for _, lb := range linesB {
		counts[lb]++
	}
	matches := 0
	for _, la := range linesA {
		if counts[la] > 0 {
			counts[la]--
			matches += 2
		}
	}

	return float64(matches) / float64(len(linesA)+len(linesB))
}

// charRatio scores two strings by their common prefix and suffix length.
func charRatio(a, b string) float64 {
	n, m := len(a), len(b)
	p := 0
	for p < n && p < m && a[p] == b[p] {
		p++
	}
	s := 0
	for s < n-p && s < m-p && a[n-1-s] == b[m-1-s] {
		s++
	}
	return float64(2*(p+s)) / float64(n+m)
}

// IsDifferent returns true if the similarity ratio of two bodies is below the
// given threshold.
func (d *DiffEngine) IsDifferent(a, b []byte, threshold float64) bool {
	return d.Ratio(a, b) < threshold
}

// Similar reports whether two responses show the same page: equal status
// and either an equal fingerprint or a ratio at or above the threshold.
func (d *DiffEngine) Similar(a, b *transport.Response) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.StatusCode != b.StatusCode {
		return false
	}
	if d.Fingerprint(a.Body) == d.Fingerprint(b.Body) {
		return true
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}
	return d.Ratio(a.Body, b.Body) >= threshold
}
