// Package engine crawls a target site and runs the injection detectors
// against every parameter it discovers.
package engine

import (
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// Location indicates where a parameter appears in the request.
type Location int

const (
	LocationQuery Location = iota
	LocationBody
	LocationCookie
)

// String returns a human-readable name for the location.
func (l Location) String() string {
	names := [...]string{"query", "body", "cookie"}
	if int(l) < len(names) {
		return names[l]
	}
	return "unknown"
}

// ParameterType indicates the inferred data type of a parameter.
type ParameterType int

const (
	TypeString ParameterType = iota
	TypeInteger
	TypeFloat
)

// Technique names a detection method.
type Technique string

const (
	TechniqueError   Technique = "Error"
	TechniqueBoolean Technique = "Boolean"
	TechniqueTime    Technique = "Time"
	TechniqueUnion   Technique = "Union"
)

// Risk is the severity level of a finding.
type Risk string

const (
	RiskCritical Risk = "Critical"
	RiskHigh     Risk = "High"
	RiskMedium   Risk = "Medium"
	RiskLow      Risk = "Low"
)

// Rank orders risks from Critical (0) to Low (3).
func (r Risk) Rank() int {
	switch r {
	case RiskCritical:
		return 0
	case RiskHigh:
		return 1
	case RiskMedium:
		return 2
	default:
		return 3
	}
}

// InjectionPoint is one parameter of one request that the detectors probe.
type InjectionPoint struct {
	URL      string
	Method   string
	Param    string
	Location Location
	Value    string
	Type     ParameterType

	// Values holds the sibling fields submitted with a body parameter.
	Values url.Values

	// Source is the page the point was discovered on.
	Source string

	// Baseline is the response to the unmodified request, set by the
	// scanner before any detector runs.
	Baseline *transport.Response
}

// Key identifies a point regardless of the parameter values in its URL.
func (p InjectionPoint) Key() string {
	return strings.ToUpper(p.method()) + " " + endpoint(p.URL) + " " + p.Location.String() + " " + p.Param
}

func (p InjectionPoint) method() string {
	if p.Method == "" {
		return http.MethodGet
	}
	return p.Method
}

// Request builds the request that submits value for the point's parameter,
// keeping every other parameter as discovered.
func (p InjectionPoint) Request(value string) *transport.Request {
	req := &transport.Request{Method: p.method(), URL: p.URL}

	switch p.Location {
	case LocationQuery:
		u, err := url.Parse(p.URL)
		if err != nil {
			return req
		}
		q := u.Query()
		q.Set(p.Param, value)
		u.RawQuery = q.Encode()
		req.URL = u.String()
	case LocationBody:
		form := url.Values{}
		if p.Values != nil {
			form = maps.Clone(p.Values)
		}
		form.Set(p.Param, value)
		req.Body = form.Encode()
		req.ContentType = "application/x-www-form-urlencoded"
		if req.Method == http.MethodGet {
			req.Method = http.MethodPost
		}
	case LocationCookie:
		req.Cookies = map[string]string{p.Param: value}
	}
	return req
}

// BaselineRequest is the request carrying the original value.
func (p InjectionPoint) BaselineRequest() *transport.Request {
	return p.Request(p.Value)
}

// Finding is one confirmed injection, one per (url, param, technique).
type Finding struct {
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Param      string    `json:"param"`
	Location   string    `json:"location"`
	Technique  Technique `json:"technique"`
	Risk       Risk      `json:"risk"`
	Score      float64   `json:"score"`
	Payload    string    `json:"payload"`
	Evidence   string    `json:"evidence"`
	FixSnippet string    `json:"fix_snippet"`
	DBMS       string    `json:"dbms,omitempty"`
	FoundAt    time.Time `json:"found_at"`
}

// Key is the deduplication key of the finding.
func (f Finding) Key() string {
	return endpoint(f.URL) + "|" + f.Param + "|" + string(f.Technique)
}

// NewFinding scores a positive detector result and attaches remediation
// advice. The returned Finding is not modified afterwards.
func NewFinding(p InjectionPoint, t Technique, sig Signal, payload, evidence string) Finding {
	risk, score := Score(t, sig)
	return Finding{
		URL:        p.URL,
		Type:       strings.ToUpper(p.method()),
		Param:      p.Param,
		Location:   p.Location.String(),
		Technique:  t,
		Risk:       risk,
		Score:      score,
		Payload:    payload,
		Evidence:   evidence,
		FixSnippet: FixSnippet(p),
		DBMS:       sig.DBMS,
		FoundAt:    time.Now().UTC(),
	}
}

// ProgressSnapshot is a point-in-time view of a running scan.
type ProgressSnapshot struct {
	Crawled  int `json:"crawled"`
	Queued   int `json:"queued"`
	Findings int `json:"findings"`
	Tested   int `json:"tested"`
	Requests int `json:"requests"`
}

// Summary describes a finished run.
type Summary struct {
	ID         string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Snapshot   ProgressSnapshot
	Visited    []string
	Findings   []Finding
}

// Duration returns how long the run took.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// endpoint strips query and fragment from rawURL.
func endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
