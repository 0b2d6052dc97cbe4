// Package dbms holds the per-engine SQL needed for detection: how to
// express a conditional delay and how to quote a literal.
package dbms

import "strings"

// DBMS provides database-specific SQL syntax.
type DBMS interface {
	Name() string

	// SleepFunction returns an expression that blocks for seconds.
	SleepFunction(seconds int) string

	// DelayClause returns the text appended after a boundary prefix that
	// blocks for seconds only when condition holds. It either starts with
	// "AND" or is a stacked statement starting with ";".
	DelayClause(condition string, seconds int) string

	// QuoteString returns s as a string literal.
	QuoteString(s string) string

	// CommentSequence is the line comment for this engine.
	CommentSequence() string
}

// All returns every supported engine in probing order.
func All() []DBMS {
	return []DBMS{&MySQL{}, &PostgreSQL{}, &MSSQL{}, &SQLite{}, &Oracle{}}
}

// Registry returns a DBMS implementation by name.
// It accepts common name variants (e.g. "MySQL", "mysql", "postgres").
// Returns nil if the name is not recognized.
func Registry(name string) DBMS {
	switch strings.ToLower(name) {
	case "mysql", "mariadb":
		return &MySQL{}
	case "postgresql", "postgres", "pgsql":
		return &PostgreSQL{}
	case "mssql", "sqlserver", "mssqlserver":
		return &MSSQL{}
	case "sqlite", "sqlite3":
		return &SQLite{}
	case "oracle":
		return &Oracle{}
	default:
		return nil
	}
}

// quoteSingle doubles embedded single quotes.
func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
