package tamper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// greaterThan matches "expr>N". [^>]+ keeps nested parentheses in expr.
var greaterThan = regexp.MustCompile(`([^>]+)>\s*(\d+)`)

// between rewrites "expr>N" as "expr BETWEEN N+1 AND N+1".
func between(s string) string {
	return greaterThan.ReplaceAllStringFunc(s, func(match string) string {
		sub := greaterThan.FindStringSubmatch(match)
		n, err := strconv.Atoi(sub[2])
		if err != nil {
			return match
		}
		return fmt.Sprintf("%s BETWEEN %d AND %d", strings.TrimSpace(sub[1]), n+1, n+1)
	})
}

// charEncode percent-encodes everything except A-Z a-z 0-9 and _-.*~, so a
// target that decodes twice sees the original payload.
func charEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_-.*~", c) >= 0
}

// equality matches a single "=" that is not part of <=, >=, != or ==.
var equality = regexp.MustCompile(`([^<>!=\s])\s*=\s*([^=\s])`)

// equalToLike rewrites "a=b" as "a LIKE b".
func equalToLike(s string) string {
	return equality.ReplaceAllString(s, "$1 LIKE $2")
}

// space2Comment replaces every space with an inline comment.
func space2Comment(s string) string {
	return strings.ReplaceAll(s, " ", "/**/")
}

// keywords is matched as whole words, case-insensitively.
var keywords = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	"INFORMATION_SCHEMA", "CURRENT_USER", "WAITFOR", "BETWEEN", "SUBSTRING",
	"CONCAT", "SELECT", "UNION", "WHERE", "ORDER", "GROUP", "LIMIT", "SLEEP",
	"DELAY", "PG_SLEEP", "RANDOMBLOB", "CAST", "FROM", "NULL", "LIKE", "CASE",
	"WHEN", "THEN", "ELSE", "END", "AND", "NOT", "OR", "BY", "IF",
}, "|") + `)\b`)

// uppercase upper-cases SQL keywords and leaves everything else alone.
func uppercase(s string) string {
	return keywords.ReplaceAllStringFunc(s, strings.ToUpper)
}
