// Package tamper rewrites probe values before they are sent, to get past
// input filters that match literal SQL syntax.
//
// Built-in tampers:
//   - between:       expr>N becomes expr BETWEEN N+1 AND N+1
//   - charencode:    percent-encodes every non-alphanumeric character
//   - equaltolike:   a=b becomes a LIKE b
//   - space2comment: spaces become /**/
//   - uppercase:     SQL keywords are upper-cased
//
// Usage:
//
//	chain, err := tamper.Parse("space2comment,uppercase")
//	probes = tamper.Wrap(probes, chain)
package tamper

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"sort"
	"strings"

	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// ErrUnknown is wrapped by Parse for names that are not registered.
var ErrUnknown = errors.New("unknown tamper")

// Tamper is one named payload transformation.
type Tamper struct {
	Name  string
	Apply func(string) string
}

// Chain applies tampers in order.
type Chain []Tamper

// Apply runs each tamper in order and returns the transformed string.
func (c Chain) Apply(s string) string {
	for _, t := range c {
		s = t.Apply(s)
	}
	return s
}

// Names returns the tamper names of c in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

var registry = map[string]func(string) string{
	"between":       between,
	"charencode":    charEncode,
	"equaltolike":   equalToLike,
	"space2comment": space2Comment,
	"uppercase":     uppercase,
}

// Available returns all registered tamper names in alphabetical order.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse builds a Chain from tamper names. Each argument may hold several
// comma-separated names; blanks are skipped.
func Parse(args ...string) (Chain, error) {
	var chain Chain
	for _, arg := range args {
		for _, name := range strings.Split(arg, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			fn, ok := registry[name]
			if !ok {
				return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknown, name, strings.Join(Available(), ", "))
			}
			chain = append(chain, Tamper{Name: name, Apply: fn})
		}
	}
	return chain, nil
}

// Wrap returns a client that applies chain to every query value, form body
// value and request cookie before sending. With an empty chain c is
// returned unchanged.
func Wrap(c transport.Client, chain Chain) transport.Client {
	if len(chain) == 0 {
		return c
	}
	return transport.ClientFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return c.Do(ctx, rewrite(req, chain))
	})
}

// rewrite returns a tampered copy of req.
func rewrite(req *transport.Request, chain Chain) *transport.Request {
	out := *req

	if u, err := url.Parse(req.URL); err == nil && u.RawQuery != "" {
		u.RawQuery = applyValues(u.Query(), chain).Encode()
		out.URL = u.String()
	}
	if req.Body != "" && strings.Contains(strings.ToLower(req.ContentType), "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(req.Body); err == nil {
			out.Body = applyValues(values, chain).Encode()
		}
	}
	if len(req.Cookies) > 0 {
		out.Cookies = maps.Clone(req.Cookies)
		for name, v := range out.Cookies {
			out.Cookies[name] = chain.Apply(v)
		}
	}
	return &out
}

func applyValues(values url.Values, chain Chain) url.Values {
	for key, vals := range values {
		for i, v := range vals {
			vals[i] = chain.Apply(v)
		}
		values[key] = vals
	}
	return values
}
