package dbms

import "fmt"

// SQLite implements DBMS for SQLite, which has no sleep function. The delay
// comes from hashing a large random blob instead.
type SQLite struct{}

// blobBytesPerSecond approximates how many random bytes SQLite hashes in
// one second on commodity hardware.
const blobBytesPerSecond = 100_000_000

// Name returns the canonical DBMS name.
func (s *SQLite) Name() string { return "SQLite" }

// SleepFunction returns a CPU-bound expression taking roughly seconds.
func (s *SQLite) SleepFunction(seconds int) string {
	return fmt.Sprintf("LIKE('ABCDEFG',UPPER(HEX(RANDOMBLOB(%d))))", seconds*blobBytesPerSecond/2)
}

// DelayClause evaluates the heavy blob only when condition holds.
func (s *SQLite) DelayClause(condition string, seconds int) string {
	return fmt.Sprintf("AND 1=(CASE WHEN (%s) THEN %s ELSE 1 END)", condition, s.SleepFunction(seconds))
}

// QuoteString returns a single-quoted literal.
func (s *SQLite) QuoteString(str string) string { return quoteSingle(str) }

// CommentSequence returns "--".
func (s *SQLite) CommentSequence() string { return "--" }
