// Package extract parses fetched pages into crawlable links and injection
// points.
package extract

import (
	"bytes"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// FuzzParams are the hidden parameter names tried when fuzzing is enabled.
var FuzzParams = []string{
	"id", "page", "cat", "category", "item", "pid", "product", "uid", "user",
	"q", "search", "query", "sort", "order", "limit", "offset", "view", "type",
	"ref", "lang",
}

// fuzzValue is the value sent for synthesized parameters.
const fuzzValue = "1"

// Options controls extraction.
type Options struct {
	// ParamFuzz adds query points for FuzzParams missing from the page.
	ParamFuzz bool
}

// Result is what a page yields.
type Result struct {
	Links  []string
	Points []engine.InjectionPoint
}

// Extractor adapts Page to the engine's extractor hook.
func Extractor(opts Options) engine.Extractor {
	return func(pageURL string, resp *transport.Response) engine.PageContent {
		r := Page(pageURL, resp, opts)
		return engine.PageContent{Links: r.Links, Points: r.Points}
	}
}

var skippedSchemes = map[string]struct{}{
	"javascript": {}, "mailto": {}, "tel": {}, "data": {},
}

// nonInjectable input types carry no user-controlled value.
var nonInjectable = map[string]struct{}{
	"submit": {}, "button": {}, "image": {}, "file": {}, "reset": {},
}

var (
	integerPattern = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern   = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
)

// Page extracts same-host links and injection points from a fetched page.
// Malformed HTML yields whatever the parser could recover, never an error.
func Page(pageURL string, resp *transport.Response, opts Options) Result {
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return Result{}
	}

	c := &collector{page: page, seen: make(map[string]struct{}), linkSeen: make(map[string]struct{})}

	c.queryPoints(page, pageURL)

	if resp != nil && len(resp.Body) > 0 {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body)); err == nil {
			base := page
			if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
				if b, err := page.Parse(strings.TrimSpace(href)); err == nil {
					base = b
				}
			}
			c.links(doc, base)
			c.forms(doc, base, pageURL)
		}
	}
	if resp != nil {
		c.cookies(resp, pageURL)
	}
	if opts.ParamFuzz {
		c.fuzz(page, pageURL)
	}

	return Result{Links: c.linkList, Points: c.points}
}

type collector struct {
	page     *url.URL
	seen     map[string]struct{}
	linkSeen map[string]struct{}
	linkList []string
	points   []engine.InjectionPoint
}

func (c *collector) add(p engine.InjectionPoint) {
	k := p.Key()
	if _, ok := c.seen[k]; ok {
		return
	}
	c.seen[k] = struct{}{}
	c.points = append(c.points, p)
}

func (c *collector) sameHost(u *url.URL) bool {
	return engine.HostKey(u) == engine.HostKey(c.page)
}

// resolve turns an attribute value into an absolute same-host URL with the
// fragment removed.
func (c *collector) resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if _, skip := skippedSchemes[strings.ToLower(ref.Scheme)]; skip {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	if !c.sameHost(abs) {
		return nil, false
	}
	return abs, true
}

func (c *collector) links(doc *goquery.Document, base *url.URL) {
	doc.Find("a[href], area[href], iframe[src], frame[src]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("href")
		if !ok {
			raw, _ = s.Attr("src")
		}
		abs, ok := c.resolve(base, raw)
		if !ok {
			return
		}
		link := abs.String()
		if _, dup := c.linkSeen[link]; !dup {
			c.linkSeen[link] = struct{}{}
			c.linkList = append(c.linkList, link)
		}
		c.queryPoints(abs, c.page.String())
	})
}

// queryPoints adds one GET point per query key of u.
func (c *collector) queryPoints(u *url.URL, source string) {
	q := u.Query()
	names := make([]string, 0, len(q))
	for name := range q {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		c.add(engine.InjectionPoint{
			URL:      u.String(),
			Method:   http.MethodGet,
			Param:    name,
			Location: engine.LocationQuery,
			Value:    q.Get(name),
			Type:     InferType(q.Get(name)),
			Source:   source,
		})
	}
}

func (c *collector) forms(doc *goquery.Document, base *url.URL, source string) {
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action := c.page
		if raw, ok := form.Attr("action"); ok && strings.TrimSpace(raw) != "" {
			abs, ok := c.resolve(base, raw)
			if !ok {
				return
			}
			action = abs
		}

		method := http.MethodGet
		if m, _ := form.Attr("method"); strings.EqualFold(strings.TrimSpace(m), http.MethodPost) {
			method = http.MethodPost
		}

		values, names := formFields(form)
		if len(names) == 0 {
			return
		}

		if method == http.MethodGet {
			u := *action
			q := u.Query()
			for name, vals := range values {
				q[name] = vals
			}
			u.RawQuery = q.Encode()
			for _, name := range names {
				c.add(engine.InjectionPoint{
					URL:      u.String(),
					Method:   http.MethodGet,
					Param:    name,
					Location: engine.LocationQuery,
					Value:    values.Get(name),
					Type:     InferType(values.Get(name)),
					Source:   source,
				})
			}
			return
		}

		for _, name := range names {
			c.add(engine.InjectionPoint{
				URL:      action.String(),
				Method:   http.MethodPost,
				Param:    name,
				Location: engine.LocationBody,
				Value:    values.Get(name),
				Type:     InferType(values.Get(name)),
				Values:   values,
				Source:   source,
			})
		}
	})
}

// formFields returns the values a browser would submit and the injectable
// field names in document order.
func formFields(form *goquery.Selection) (url.Values, []string) {
	values := url.Values{}
	var names []string
	seen := make(map[string]struct{})
	note := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "textarea":
			if _, ok := values[name]; !ok {
				values.Set(name, s.Text())
			}
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			v, ok := opt.Attr("value")
			if !ok {
				v = strings.TrimSpace(opt.Text())
			}
			if _, ok := values[name]; !ok {
				values.Set(name, v)
			}
		default:
			typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "text")))
			if _, skip := nonInjectable[typ]; skip {
				return
			}
			v := s.AttrOr("value", "")
			if (typ == "checkbox" || typ == "radio") && v == "" {
				v = "on"
			}
			if _, ok := values[name]; !ok {
				values.Set(name, v)
			}
		}
		note(name)
	})
	return values, names
}

// cookies turns each Set-Cookie on the page into a cookie point.
func (c *collector) cookies(resp *transport.Response, source string) {
	for _, ck := range resp.Cookies() {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		c.add(engine.InjectionPoint{
			URL:      c.page.String(),
			Method:   http.MethodGet,
			Param:    ck.Name,
			Location: engine.LocationCookie,
			Value:    ck.Value,
			Type:     InferType(ck.Value),
			Source:   source,
		})
	}
}

// fuzz adds query points on the page URL for common parameter names the
// page does not already use.
func (c *collector) fuzz(page *url.URL, source string) {
	present := page.Query()
	for _, p := range c.points {
		if p.Location == engine.LocationQuery {
			if u, err := url.Parse(p.URL); err == nil && u.Path == page.Path {
				present.Set(p.Param, p.Value)
			}
		}
	}
	for _, name := range FuzzParams {
		if _, ok := present[name]; ok {
			continue
		}
		u := *page
		q := u.Query()
		q.Set(name, fuzzValue)
		u.RawQuery = q.Encode()
		u.Fragment = ""
		c.add(engine.InjectionPoint{
			URL:      u.String(),
			Method:   http.MethodGet,
			Param:    name,
			Location: engine.LocationQuery,
			Value:    fuzzValue,
			Type:     engine.TypeInteger,
			Source:   source,
		})
	}
}

// InferType guesses the parameter type from its value.
func InferType(value string) engine.ParameterType {
	if integerPattern.MatchString(value) {
		return engine.TypeInteger
	}
	if floatPattern.MatchString(value) {
		return engine.TypeFloat
	}
	return engine.TypeString
}
