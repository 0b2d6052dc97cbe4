package cli

import (
	"bytes"
	"strings"
	"testing"
)

// execute runs the command line with args and returns what it printed.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "sqlscan" {
		t.Errorf("expected Use to be 'sqlscan', got %q", root.Use)
	}
	want := map[string]bool{"scan": false, "history": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "sqlscan dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestScanCommand_MissingURL(t *testing.T) {
	_, _, err := execute(t, "scan")
	if err == nil {
		t.Fatal("expected error when --url is not provided, got nil")
	}
	if err != errNoURL {
		t.Errorf("expected error %q, got %q", errNoURL, err)
	}
}

func TestScanCommand_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "scan", "-u", "http://127.0.0.1:1/", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported report format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestScanCommand_VerboseAndQuietConflict(t *testing.T) {
	_, _, err := execute(t, "scan", "-u", "http://127.0.0.1:1/", "-v", "-q")
	if err == nil {
		t.Fatal("expected an error for -v with -q")
	}
}

func TestScanFlags_Defaults(t *testing.T) {
	cmd, _ := newScanCommand()
	tests := []struct {
		flag string
		want string
	}{
		{"depth", "2"},
		{"concurrency", "10"},
		{"delay", "200ms"},
		{"boolean-rounds", "3"},
		{"union-max-columns", "6"},
		{"time-threshold", "2s"},
		{"timeout", "10s"},
		{"format", "text"},
		{"no-robots", "false"},
		{"time-based", "false"},
		{"max-rps", "0"},
	}
	for _, tt := range tests {
		fl := cmd.Flags().Lookup(tt.flag)
		if fl == nil {
			t.Errorf("flag --%s not defined", tt.flag)
			continue
		}
		if fl.DefValue != tt.want {
			t.Errorf("--%s default = %q, want %q", tt.flag, fl.DefValue, tt.want)
		}
	}
	for _, short := range []string{"u", "H", "v", "q", "o", "f"} {
		if cmd.Flags().ShorthandLookup(short) == nil {
			t.Errorf("shorthand -%s not defined", short)
		}
	}
}

func TestParseCookieString(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"a=1", map[string]string{"a": "1"}},
		{"a=1; b=2", map[string]string{"a": "1", "b": "2"}},
		{" a = 1 ;; junk; c=x=y", map[string]string{"a": "1", "c": "x=y"}},
	}
	for _, tt := range tests {
		got := parseCookieString(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("parseCookieString(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("parseCookieString(%q)[%q] = %q, want %q", tt.raw, k, got[k], v)
			}
		}
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders([]string{"X-Test: 1", "Authorization: Bearer a:b", "broken"})
	if len(got) != 2 {
		t.Fatalf("parseHeaders returned %v", got)
	}
	if got["X-Test"] != "1" || got["Authorization"] != "Bearer a:b" {
		t.Errorf("parseHeaders = %v", got)
	}
}
