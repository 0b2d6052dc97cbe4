// Package detector recognises database error output and compares
// responses for differential injection tests.
package detector

import (
	"regexp"
	"strings"
)

// GenericDBMS labels signatures that do not identify a specific engine.
const GenericDBMS = "Generic"

// Signature is one database-error pattern.
type Signature struct {
	DBMS    string
	Pattern *regexp.Regexp
}

// signatures is ordered vendor-first so that vendor matches take
// precedence over the generic fallbacks at the end.
var signatures = []Signature{
	// MySQL / MariaDB
	{"MySQL", regexp.MustCompile(`(?i)You have an error in your SQL syntax`)},
	{"MySQL", regexp.MustCompile(`(?i)Warning:.*\bmysqli?_`)},
	{"MySQL", regexp.MustCompile(`(?i)MySqlException`)},
	{"MySQL", regexp.MustCompile(`(?i)valid MySQL result`)},
	{"MySQL", regexp.MustCompile(`(?i)check the manual that (?:corresponds to|fits) your (?:MySQL|MariaDB) server version`)},
	{"MySQL", regexp.MustCompile(`(?i)MySqlClient\.`)},
	{"MySQL", regexp.MustCompile(`(?i)com\.mysql\.jdbc`)},
	{"MySQL", regexp.MustCompile(`(?i)Unknown column '[^']+' in '[^']+'`)},
	{"MySQL", regexp.MustCompile(`(?i)MariaDB server version for the right syntax`)},
	{"MySQL", regexp.MustCompile(`(?i)SQLSTATE\[HY000\] \[\d+\]`)},

	// PostgreSQL
	{"PostgreSQL", regexp.MustCompile(`(?i)ERROR:\s+syntax error at or near`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)pg_(?:query|exec)\(\)`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)PostgreSQL.*?ERROR`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)Warning:.*\bpg_`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)valid PostgreSQL result`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)Npgsql\.`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)PG::SyntaxError`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)org\.postgresql\.util\.PSQLException`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)unterminated quoted string at or near`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)invalid input syntax for (?:type )?integer`)},

	// Microsoft SQL Server
	{"MSSQL", regexp.MustCompile(`(?i)Unclosed quotation mark after the character string`)},
	{"MSSQL", regexp.MustCompile(`(?i)\bOLE DB\b.*\bSQL Server\b`)},
	{"MSSQL", regexp.MustCompile(`(?i)\bSQL Server\b.*\bDriver\b`)},
	{"MSSQL", regexp.MustCompile(`(?i)Microsoft SQL Native Client`)},
	{"MSSQL", regexp.MustCompile(`(?i)\[ODBC SQL Server Driver\]`)},
	{"MSSQL", regexp.MustCompile(`(?i)\[SQL Server\]`)},
	{"MSSQL", regexp.MustCompile(`(?i)System\.Data\.SqlClient\.SqlException`)},
	{"MSSQL", regexp.MustCompile(`(?i)Incorrect syntax near`)},
	{"MSSQL", regexp.MustCompile(`Msg \d+, Level \d+, State \d+`)},
	{"MSSQL", regexp.MustCompile(`(?i)Warning:.*\b(?:mssql|sqlsrv)_`)},

	// Oracle
	{"Oracle", regexp.MustCompile(`\bORA-\d{5}`)},
	{"Oracle", regexp.MustCompile(`(?i)Oracle error`)},
	{"Oracle", regexp.MustCompile(`(?i)Oracle.*?Driver`)},
	{"Oracle", regexp.MustCompile(`(?i)Warning:.*\boci_`)},
	{"Oracle", regexp.MustCompile(`(?i)oracle\.jdbc`)},
	{"Oracle", regexp.MustCompile(`(?i)OracleException`)},
	{"Oracle", regexp.MustCompile(`(?i)quoted string not properly terminated`)},

	// SQLite
	{"SQLite", regexp.MustCompile(`(?i)SQLITE_ERROR`)},
	{"SQLite", regexp.MustCompile(`(?i)SQLite3::(?:query|SQLException)`)},
	{"SQLite", regexp.MustCompile(`(?i)sqlite3\.OperationalError`)},
	{"SQLite", regexp.MustCompile(`(?i)SQLite/JDBCDriver`)},
	{"SQLite", regexp.MustCompile(`(?i)SQLite\.Exception`)},
	{"SQLite", regexp.MustCompile(`(?i)System\.Data\.SQLite\.SQLiteException`)},
	{"SQLite", regexp.MustCompile(`(?i)Warning:.*\bsqlite_`)},
	{"SQLite", regexp.MustCompile(`(?i)unrecognized token: "`)},

	// IBM DB2
	{"DB2", regexp.MustCompile(`(?i)CLI Driver.*?DB2`)},
	{"DB2", regexp.MustCompile(`(?i)DB2 SQL error`)},
	{"DB2", regexp.MustCompile(`(?i)\bdb2_\w+\(`)},
	{"DB2", regexp.MustCompile(`SQLCODE[=:\s]+-?\d+`)},

	// Microsoft Access / JET
	{"Access", regexp.MustCompile(`(?i)Microsoft Access (?:\d+ )?Driver`)},
	{"Access", regexp.MustCompile(`(?i)JET Database Engine`)},
	{"Access", regexp.MustCompile(`(?i)Access Database Engine`)},
	{"Access", regexp.MustCompile(`(?i)Syntax error \(missing operator\) in query expression`)},

	// Sybase
	{"Sybase", regexp.MustCompile(`(?i)Warning:.*\bsybase_`)},
	{"Sybase", regexp.MustCompile(`(?i)Sybase message`)},
	{"Sybase", regexp.MustCompile(`(?i)SybSQLException`)},

	// Informix
	{"Informix", regexp.MustCompile(`(?i)Warning:.*\bifx_`)},
	{"Informix", regexp.MustCompile(`(?i)Exception.*?Informix`)},
	{"Informix", regexp.MustCompile(`(?i)com\.informix\.jdbc`)},

	// Fallbacks
	{GenericDBMS, regexp.MustCompile(`(?i)SQL syntax.*?error`)},
	{GenericDBMS, regexp.MustCompile(`(?i)unexpected end of SQL command`)},
	{GenericDBMS, regexp.MustCompile(`(?i)\bSQLSTATE\[\w+\]`)},
	{GenericDBMS, regexp.MustCompile(`(?i)(?:PDOException|java\.sql\.SQLException|SQLException)`)},
	{GenericDBMS, regexp.MustCompile(`(?i)syntax error`)},
}

// Signatures returns a copy of the signature table.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}

// ErrorMatch is a database error found in a response body.
type ErrorMatch struct {
	DBMS string
	Text string
}

// Vendor reports whether the match names a specific database engine.
func (m ErrorMatch) Vendor() bool {
	return m.DBMS != GenericDBMS
}

// FindSQLErrors scans the response body for known SQL error messages.
// It returns a map of DBMS name to matched error strings.
func FindSQLErrors(body []byte) map[string][]string {
	if len(body) == 0 {
		return nil
	}

	result := make(map[string][]string)
	for _, m := range matchAll(string(body)) {
		if !containsString(result[m.DBMS], m.Text) {
			result[m.DBMS] = append(result[m.DBMS], m.Text)
		}
	}
	return result
}

// NewSQLErrors returns the error matches present in probe but absent from
// baseline, in table order (vendor signatures first).
func NewSQLErrors(baseline, probe []byte) []ErrorMatch {
	if len(probe) == 0 {
		return nil
	}
	baseText := string(baseline)

	var out []ErrorMatch
	for _, m := range matchAll(string(probe)) {
		if strings.Contains(baseText, m.Text) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// HasSQLError reports whether body contains any known error signature.
func HasSQLError(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	text := string(body)
	for _, sig := range signatures {
		if sig.Pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func matchAll(text string) []ErrorMatch {
	var out []ErrorMatch
	for _, sig := range signatures {
		for _, m := range sig.Pattern.FindAllString(text, -1) {
			out = append(out, ErrorMatch{DBMS: sig.DBMS, Text: m})
		}
	}
	return out
}

// containsString checks if a string slice contains a value (case-insensitive).
func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, val) {
			return true
		}
	}
	return false
}
