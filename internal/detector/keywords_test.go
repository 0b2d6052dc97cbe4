package detector

import (
	"strings"
	"testing"
)

func TestFindSQLErrors_Vendors(t *testing.T) {
	tests := []struct {
		name string
		body string
		dbms string
	}{
		{"mysql syntax", "Error: You have an error in your SQL syntax; check the manual", "MySQL"},
		{"mariadb", "check the manual that corresponds to your MariaDB server version for the right syntax", "MySQL"},
		{"mysqli warning", "Warning: mysqli_fetch_assoc() expects parameter 1", "MySQL"},
		{"postgres", `ERROR: syntax error at or near "SELECT"`, "PostgreSQL"},
		{"postgres unterminated", `unterminated quoted string at or near "'"`, "PostgreSQL"},
		{"mssql", "Unclosed quotation mark after the character string ''.", "MSSQL"},
		{"mssql incorrect syntax", "Incorrect syntax near 'x'.", "MSSQL"},
		{"oracle", "ORA-00933: SQL command not properly ended", "Oracle"},
		{"sqlite", `SQLITE_ERROR: near "FROM": syntax error`, "SQLite"},
		{"sqlite token", `unrecognized token: "'1''"`, "SQLite"},
		{"db2", "DB2 SQL error: SQLCODE=-104, SQLSTATE=42601", "DB2"},
		{"access", "Microsoft Access Driver: Syntax error (missing operator) in query expression", "Access"},
		{"sybase", "Sybase message: Incorrect syntax", "Sybase"},
		{"informix", "Warning: ifx_query(): something failed", "Informix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindSQLErrors([]byte(tt.body))
			if len(result[tt.dbms]) == 0 {
				t.Fatalf("FindSQLErrors(%q) = %v, want a %s match", tt.body, result, tt.dbms)
			}
		})
	}
}

func TestFindSQLErrors_MultipleDBMS(t *testing.T) {
	body := []byte(`
		<html>
		<body>
		Warning: mysql_fetch_array(): supplied argument is not a valid MySQL result resource
		SQL syntax error detected
		</body>
		</html>
	`)
	result := FindSQLErrors(body)

	if _, ok := result["MySQL"]; !ok {
		t.Error("expected MySQL errors to be detected")
	}
	if _, ok := result[GenericDBMS]; !ok {
		t.Error("expected Generic errors to be detected")
	}
}

func TestFindSQLErrors_NoErrors(t *testing.T) {
	body := []byte("<html><body><h1>Welcome to our website</h1><p>Everything is fine.</p></body></html>")
	if result := FindSQLErrors(body); len(result) != 0 {
		t.Errorf("expected no errors in clean response, got %v", result)
	}
	if HasSQLError(body) {
		t.Error("HasSQLError() = true for clean body")
	}
}

func TestFindSQLErrors_CaseInsensitive(t *testing.T) {
	result := FindSQLErrors([]byte("you have an error in your sql syntax"))
	if _, ok := result["MySQL"]; !ok {
		t.Error("expected case-insensitive matching to detect MySQL error")
	}
}

func TestFindSQLErrors_EmptyBody(t *testing.T) {
	if result := FindSQLErrors(nil); len(result) != 0 {
		t.Errorf("expected no errors for nil body, got %v", result)
	}
	if result := FindSQLErrors([]byte{}); len(result) != 0 {
		t.Errorf("expected no errors for empty body, got %v", result)
	}
}

func TestFindSQLErrors_Generic(t *testing.T) {
	result := FindSQLErrors([]byte("unexpected end of SQL command"))
	found := false
	for _, e := range result[GenericDBMS] {
		if strings.Contains(e, "unexpected end of SQL command") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected generic match, got %v", result)
	}
}

func TestNewSQLErrors_IgnoresBaselineErrors(t *testing.T) {
	baseline := []byte("<p>Incorrect syntax near 'x'.</p>")
	probe := []byte("<p>Incorrect syntax near 'x'.</p>")
	if got := NewSQLErrors(baseline, probe); len(got) != 0 {
		t.Errorf("NewSQLErrors() = %v, want none when baseline has the same error", got)
	}
}

func TestNewSQLErrors_VendorFirst(t *testing.T) {
	probe := []byte("syntax error: You have an error in your SQL syntax near ''1''")
	got := NewSQLErrors([]byte("<p>ok</p>"), probe)
	if len(got) == 0 {
		t.Fatal("expected matches")
	}
	if got[0].DBMS != "MySQL" || !got[0].Vendor() {
		t.Errorf("first match = %+v, want a MySQL vendor match", got[0])
	}
	last := got[len(got)-1]
	if last.Vendor() {
		t.Errorf("last match = %+v, want the generic fallback", last)
	}
}

func TestSignatures_ReturnsCopy(t *testing.T) {
	sigs := Signatures()
	if len(sigs) < 40 {
		t.Errorf("len(Signatures()) = %d, want a broad table", len(sigs))
	}
	sigs[0].DBMS = "changed"
	if Signatures()[0].DBMS == "changed" {
		t.Error("Signatures() exposed the internal table")
	}
}
