package dbms

import "fmt"

// MySQL covers MySQL and MariaDB.
type MySQL struct{}

// Name returns the canonical DBMS name.
func (m *MySQL) Name() string { return "MySQL" }

// SleepFunction returns a MySQL SLEEP(n) expression.
func (m *MySQL) SleepFunction(seconds int) string {
	return fmt.Sprintf("SLEEP(%d)", seconds)
}

// DelayClause returns AND IF(cond,SLEEP(n),0).
func (m *MySQL) DelayClause(condition string, seconds int) string {
	return fmt.Sprintf("AND IF(%s,%s,0)", condition, m.SleepFunction(seconds))
}

// QuoteString returns a single-quoted literal.
func (m *MySQL) QuoteString(s string) string { return quoteSingle(s) }

// CommentSequence returns "-- -".
func (m *MySQL) CommentSequence() string { return "-- -" }
