// Package testutil provides crawlable test sites for integration testing of
// the scanner: a deliberately injectable site and a plain link graph.
//
// SECURITY NOTE: This package is for testing only. The mock server
// intentionally simulates SQL-injectable endpoints. All user-derived
// values embedded in responses are HTML-escaped via html/template.
package testutil

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DisallowedPath is excluded by the vulnerable site's robots.txt.
const DisallowedPath = "/admin"

// SleepDelay is how long the time-based endpoint stalls for a true sleep
// condition, whatever the requested seconds.
const SleepDelay = 400 * time.Millisecond

// unionColumns is the column count of the union endpoint's query.
const unionColumns = 3

// Response templates using html/template for safe HTML rendering.
var tmplMap = template.Must(template.New("").Parse(`
{{define "index"}}<html><head><title>Shop</title></head><body>
<h1>Shop</h1>
<ul>
<li><a href="/vuln/error?id=1">Product</a></li>
<li><a href="/vuln/boolean?id=1">Store</a></li>
<li><a href="/vuln/union?cat=1">Catalog</a></li>
<li><a href="/vuln/time?id=1">Records</a></li>
<li><a href="/vuln/cookie">Preferences</a></li>
<li><a href="/safe?id=42">Safe product</a></li>
<li><a href="/about">About</a></li>
<li><a href="` + DisallowedPath + `">Admin</a></li>
<li><a href="/logo.png">Logo</a></li>
<li><a href="http://elsewhere.invalid/">Partner</a></li>
</ul>
<form action="/vuln/login" method="post">
<input type="text" name="user" value="guest">
<input type="password" name="pass" value="guest">
<input type="submit" value="Login">
</form>
</body></html>{{end}}
{{define "about"}}<html><body><h1>About</h1><p>A small shop.</p><a href="/">Home</a></body></html>{{end}}
{{define "admin"}}<html><body><h1>Admin</h1><p>Restricted.</p></body></html>{{end}}
{{define "mysql-syntax-error"}}<html><body><h1>Error</h1><p>You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version for the right syntax to use near '{{.}}'</p></body></html>{{end}}
{{define "product"}}<html><body><h1>Products</h1><p>Product: Widget (ID: 1)</p></body></html>{{end}}
{{define "bool-normal"}}<html><body><h1>Store</h1><p>Welcome! Your item: Widget, a small blue widget with a five year warranty.</p></body></html>{{end}}
{{define "bool-false"}}<html><body><h1>Store</h1><p>No items found.</p></body></html>{{end}}
{{define "catalog"}}<html><body><h1>Catalog</h1><ul><li>Widget</li>{{if .}}<li>{{.}}</li>{{end}}</ul></body></html>{{end}}
{{define "catalog-error"}}<html><body><h1>Error</h1><p>Unknown column '{{.}}' in 'order clause'</p></body></html>{{end}}
{{define "records"}}<html><body><h1>Results</h1><p>Record found.</p></body></html>{{end}}
{{define "login-ok"}}<html><body><h1>Login</h1><p>Welcome back, {{.}}!</p></body></html>{{end}}
{{define "login-error"}}<html><body><h1>Error</h1><p>ORA-00933: SQL command not properly ended</p></body></html>{{end}}
{{define "prefs"}}<html><body><h1>Preferences</h1><p>Theme: {{.}}</p></body></html>{{end}}
{{define "prefs-error"}}<html><body><h1>Error</h1><p>Warning: pg_query(): Query failed: ERROR:  unterminated quoted string at or near "{{.}}"</p></body></html>{{end}}
{{define "safe"}}<html><body><h1>Product</h1><p>Product details for item 42</p></body></html>{{end}}
`))

var (
	orderByPattern = regexp.MustCompile(`(?i)ORDER BY (\d+)`)
	unionPattern   = regexp.MustCompile(`(?i)UNION SELECT (.*?)(?:\s+--.*|\s+#.*)?$`)
	sleepPattern   = regexp.MustCompile(`(?i)IF\(1=1,SLEEP\(\d+\),0\)`)
)

// Server is a test site that counts requests per path.
type Server struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

// Hits returns how many requests path received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Requests returns the total number of requests received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

func newServer(h http.Handler) *Server {
	s := &Server{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		h.ServeHTTP(w, r)
	}))
	return s
}

// NewVulnServer creates a mock site whose index links to one endpoint per
// injection technique. The returned Server should be closed after use.
//
//   - /vuln/error?id=     MySQL syntax error for any quote
//   - /vuln/boolean?id=   page content follows an injected AND condition
//   - /vuln/union?cat=    3-column query, second column displayed
//   - /vuln/time?id=      stalls for a MySQL IF(1=1,SLEEP(n),0)
//   - /vuln/login         POST form, Oracle error for a quote in user
//   - /vuln/cookie        Postgres error for a quote in the theme cookie
//   - /safe?id=           never changes
func NewVulnServer() *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", page("index"))
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: %s\n", DisallowedPath)
	})
	mux.HandleFunc("/about", page("about"))
	mux.HandleFunc(DisallowedPath, page("admin"))
	mux.HandleFunc("/vuln/error", handleError)
	mux.HandleFunc("/vuln/boolean", handleBoolean)
	mux.HandleFunc("/vuln/union", handleUnion)
	mux.HandleFunc("/vuln/time", handleTime)
	mux.HandleFunc("/vuln/login", handleLogin)
	mux.HandleFunc("/vuln/cookie", handleCookie)
	mux.HandleFunc("/safe", page("safe"))
	return newServer(mux)
}

// NewLinkSite creates a site without parameters. links maps a path to the
// paths it links to; robots, when set, is served as /robots.txt. Paths
// missing from links answer 404.
func NewLinkSite(links map[string][]string, robots string) *Server {
	return newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" && robots != "" {
			fmt.Fprint(w, robots)
			return
		}
		targets, ok := links[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><h1>%s</h1>", template.HTMLEscapeString(r.URL.Path))
		for _, t := range targets {
			fmt.Fprintf(w, `<a href="%s">%s</a>`, template.HTMLEscapeString(t), template.HTMLEscapeString(t))
		}
		fmt.Fprint(w, "</body></html>")
	}))
}

// execTemplate renders a named template with optional data.
func execTemplate(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	tmplMap.ExecuteTemplate(w, name, data) //nolint:errcheck
}

func page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		execTemplate(w, http.StatusOK, name, nil)
	}
}

// handleError simulates SELECT ... WHERE id=<id> on MySQL: a quote breaks
// the statement, nothing else changes the page.
func handleError(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if strings.Contains(id, "'") {
		execTemplate(w, http.StatusOK, "mysql-syntax-error", id)
		return
	}
	execTemplate(w, http.StatusOK, "product", nil)
}

// handleBoolean shows the item only while the injected condition holds.
// Quotes and unbalanced syntax fail silently with an empty result.
func handleBoolean(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	switch {
	case strings.ContainsAny(id, `'"()`):
		execTemplate(w, http.StatusOK, "bool-false", nil)
	case strings.Contains(id, "AND 1=2"):
		execTemplate(w, http.StatusOK, "bool-false", nil)
	default:
		execTemplate(w, http.StatusOK, "bool-normal", nil)
	}
}

// handleUnion simulates SELECT id,name,price FROM items WHERE cat=<cat>
// with the name column displayed.
func handleUnion(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("cat")
	if m := unionPattern.FindStringSubmatch(cat); m != nil {
		cols := strings.Split(m[1], ",")
		if len(cols) != unionColumns {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "Internal Server Error")
			return
		}
		shown := strings.Trim(strings.TrimSpace(cols[1]), "'")
		if shown == "NULL" {
			shown = ""
		}
		execTemplate(w, http.StatusOK, "catalog", shown)
		return
	}
	if strings.ContainsAny(cat, `'"()`) {
		execTemplate(w, http.StatusOK, "catalog", nil)
		return
	}
	if m := orderByPattern.FindStringSubmatch(cat); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > unionColumns {
			execTemplate(w, http.StatusOK, "catalog-error", n)
			return
		}
	}
	execTemplate(w, http.StatusOK, "catalog", nil)
}

// handleTime stalls for a true MySQL sleep condition and never changes
// its content.
func handleTime(w http.ResponseWriter, r *http.Request) {
	if sleepPattern.MatchString(r.URL.Query().Get("id")) {
		select {
		case <-time.After(SleepDelay):
		case <-r.Context().Done():
			return
		}
	}
	execTemplate(w, http.StatusOK, "records", nil)
}

// handleLogin simulates an Oracle-backed login form.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	user := r.PostFormValue("user")
	if strings.Contains(user, "'") {
		execTemplate(w, http.StatusOK, "login-error", nil)
		return
	}
	execTemplate(w, http.StatusOK, "login-ok", user)
}

// handleCookie sets a theme cookie and reads it back into a Postgres
// query.
func handleCookie(w http.ResponseWriter, r *http.Request) {
	theme := "light"
	if c, err := r.Cookie("theme"); err == nil {
		theme = c.Value
	} else {
		http.SetCookie(w, &http.Cookie{Name: "theme", Value: theme, Path: "/"})
	}
	if strings.Contains(theme, "'") {
		execTemplate(w, http.StatusOK, "prefs-error", theme)
		return
	}
	execTemplate(w, http.StatusOK, "prefs", theme)
}
