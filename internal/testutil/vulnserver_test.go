package testutil

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestVulnServer_Index(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	status, body := get(t, srv.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{"/vuln/error?id=1", "/vuln/union?cat=1", `action="/vuln/login"`, DisallowedPath} {
		if !strings.Contains(body, want) {
			t.Errorf("index does not link %q", want)
		}
	}
	if status, _ := get(t, srv.URL+"/missing"); status != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", status)
	}
}

func TestVulnServer_Robots(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	_, body := get(t, srv.URL+"/robots.txt")
	if !strings.Contains(body, "Disallow: "+DisallowedPath) {
		t.Errorf("robots.txt = %q", body)
	}
}

func TestVulnServer_Error(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	if _, body := get(t, srv.URL+"/vuln/error?id=1"); !strings.Contains(body, "Product: Widget") {
		t.Errorf("normal body = %s", body)
	}
	if _, body := get(t, srv.URL+"/vuln/error?id=1'"); !strings.Contains(body, "You have an error in your SQL syntax") {
		t.Errorf("body does not contain MySQL error, got: %s", body)
	}
}

func TestVulnServer_Boolean(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	_, trueBody := get(t, srv.URL+"/vuln/boolean?id="+url.QueryEscape("1 AND 1=1"))
	_, falseBody := get(t, srv.URL+"/vuln/boolean?id="+url.QueryEscape("1 AND 1=2"))
	if !strings.Contains(trueBody, "Welcome!") || !strings.Contains(falseBody, "No items found.") {
		t.Errorf("true = %s, false = %s", trueBody, falseBody)
	}
}

func TestVulnServer_Union(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	if _, body := get(t, srv.URL+"/vuln/union?cat="+url.QueryEscape("1 ORDER BY 9")); !strings.Contains(body, "Unknown column '9'") {
		t.Errorf("ORDER BY 9 body = %s", body)
	}
	if status, _ := get(t, srv.URL+"/vuln/union?cat="+url.QueryEscape("1 UNION SELECT NULL,NULL")); status != http.StatusInternalServerError {
		t.Errorf("2-column UNION status = %d, want 500", status)
	}
	_, body := get(t, srv.URL+"/vuln/union?cat="+url.QueryEscape("1 UNION SELECT 'a','marker','c'-- -"))
	if !strings.Contains(body, "<li>marker</li>") {
		t.Errorf("3-column UNION body = %s", body)
	}
}

func TestVulnServer_Time(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	start := time.Now()
	get(t, srv.URL+"/vuln/time?id="+url.QueryEscape("1 AND IF(1=1,SLEEP(2),0)"))
	if d := time.Since(start); d < SleepDelay {
		t.Errorf("true condition took %s, want at least %s", d, SleepDelay)
	}

	start = time.Now()
	get(t, srv.URL+"/vuln/time?id="+url.QueryEscape("1 AND IF(1=2,SLEEP(2),0)"))
	if d := time.Since(start); d >= SleepDelay {
		t.Errorf("false condition took %s", d)
	}
}

func TestVulnServer_Login(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/vuln/login", url.Values{"user": {"admin'"}, "pass": {"x"}})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ORA-00933") {
		t.Errorf("body = %s", body)
	}
}

func TestVulnServer_Cookie(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vuln/cookie")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if len(resp.Cookies()) != 1 || resp.Cookies()[0].Name != "theme" {
		t.Fatalf("cookies = %v", resp.Cookies())
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/vuln/cookie", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "light'"})
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "pg_query()") {
		t.Errorf("body = %s", body)
	}
}

func TestServerHits(t *testing.T) {
	srv := NewVulnServer()
	defer srv.Close()

	get(t, srv.URL+"/about")
	get(t, srv.URL+"/about")
	get(t, srv.URL+"/safe")
	if got := srv.Hits("/about"); got != 2 {
		t.Errorf("Hits(/about) = %d, want 2", got)
	}
	if got := srv.Requests(); got != 3 {
		t.Errorf("Requests() = %d, want 3", got)
	}
}

func TestLinkSite(t *testing.T) {
	srv := NewLinkSite(map[string][]string{
		"/":  {"/a"},
		"/a": {"/"},
	}, "User-agent: *\nDisallow: /a\n")
	defer srv.Close()

	if _, body := get(t, srv.URL+"/"); !strings.Contains(body, `href="/a"`) {
		t.Errorf("body = %s", body)
	}
	if _, body := get(t, srv.URL+"/robots.txt"); !strings.Contains(body, "Disallow: /a") {
		t.Errorf("robots = %s", body)
	}
	if status, _ := get(t, srv.URL+"/b"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}
