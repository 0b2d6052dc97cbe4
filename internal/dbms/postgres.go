package dbms

import "fmt"

// PostgreSQL implements DBMS for PostgreSQL.
type PostgreSQL struct{}

// Name returns the canonical DBMS name.
func (p *PostgreSQL) Name() string { return "PostgreSQL" }

// SleepFunction returns a PostgreSQL pg_sleep(n) expression.
func (p *PostgreSQL) SleepFunction(seconds int) string {
	return fmt.Sprintf("PG_SLEEP(%d)", seconds)
}

// DelayClause wraps pg_sleep in a CASE so the comparison stays boolean.
func (p *PostgreSQL) DelayClause(condition string, seconds int) string {
	return fmt.Sprintf("AND 1=(CASE WHEN (%s) THEN (SELECT 1 FROM %s) ELSE 1 END)", condition, p.SleepFunction(seconds))
}

// QuoteString returns a single-quoted literal.
func (p *PostgreSQL) QuoteString(s string) string { return quoteSingle(s) }

// CommentSequence returns "--".
func (p *PostgreSQL) CommentSequence() string { return "--" }
