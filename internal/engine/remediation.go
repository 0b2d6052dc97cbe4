package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// FixSnippet returns a PHP PDO prepared-statement example that binds the
// point's parameter instead of concatenating it into SQL.
func FixSnippet(p InjectionPoint) string {
	param := nonIdent.ReplaceAllString(p.Param, "_")
	if param == "" || (param[0] >= '0' && param[0] <= '9') {
		param = "p_" + param
	}

	var source string
	switch p.Location {
	case LocationBody:
		source = "$_POST"
	case LocationCookie:
		source = "$_COOKIE"
	default:
		source = "$_GET"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<?php\n")
	fmt.Fprintf(&b, "// %s %s: bind %q as a parameter, never concatenate it.\n", strings.ToUpper(p.method()), endpoint(p.URL), p.Param)
	fmt.Fprintf(&b, "$pdo = new PDO($dsn, $user, $pass, [PDO::ATTR_EMULATE_PREPARES => false]);\n")
	fmt.Fprintf(&b, "$stmt = $pdo->prepare('SELECT * FROM items WHERE %s = :%s');\n", param, param)
	fmt.Fprintf(&b, "$stmt->execute([':%s' => %s[%s] ?? '']);\n", param, source, phpString(p.Param))
	fmt.Fprintf(&b, "$rows = $stmt->fetchAll(PDO::FETCH_ASSOC);\n")
	return b.String()
}

func phpString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
