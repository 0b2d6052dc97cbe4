package dbms

import "fmt"

// MSSQL implements DBMS for Microsoft SQL Server.
type MSSQL struct{}

// Name returns the canonical DBMS name.
func (m *MSSQL) Name() string { return "MSSQL" }

// SleepFunction returns a WAITFOR DELAY 'h:mm:ss' statement.
func (m *MSSQL) SleepFunction(seconds int) string {
	h := seconds / 3600
	min := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("WAITFOR DELAY '%d:%02d:%02d'", h, min, s)
}

// DelayClause is a stacked IF since WAITFOR cannot appear in an expression.
func (m *MSSQL) DelayClause(condition string, seconds int) string {
	return fmt.Sprintf("; IF (%s) %s", condition, m.SleepFunction(seconds))
}

// QuoteString returns a single-quoted literal.
func (m *MSSQL) QuoteString(s string) string { return quoteSingle(s) }

// CommentSequence returns "--".
func (m *MSSQL) CommentSequence() string { return "--" }
