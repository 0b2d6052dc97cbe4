package engine

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid scan configuration")

// ScanConfig holds the options of one scan. It is not modified once a run
// starts.
type ScanConfig struct {
	StartURL        string
	MaxDepth        int
	Concurrency     int
	Delay           time.Duration
	RespectRobots   bool
	BooleanRounds   int
	UnionMaxColumns int
	TimeBased       bool
	TimeThreshold   time.Duration
	ParamFuzz       bool
	RobotsUserAgent string
	JSRender        bool
	Verbose         bool
	Quiet           bool

	Timeout            time.Duration     // per fetch
	Headers            map[string]string // sent with every request
	Cookies            map[string]string // sent with every request
	Proxy              string
	InsecureSkipVerify bool
	MaxPages           int     // 0 = unlimited
	MaxRPS             float64 // 0 = unlimited

	// Tampers names payload rewrites applied to probe requests, in order.
	Tampers []string
}

// DefaultScanConfig returns sensible defaults.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		MaxDepth:        2,
		Concurrency:     10,
		Delay:           200 * time.Millisecond,
		RespectRobots:   true,
		BooleanRounds:   3,
		UnionMaxColumns: 6,
		TimeThreshold:   2 * time.Second,
		Timeout:         10 * time.Second,
	}
}

// Validate reports the first invalid option.
func (c *ScanConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if _, err := c.start(); err != nil {
		return err
	}
	switch {
	case c.MaxDepth < 0:
		return fmt.Errorf("%w: max depth must be >= 0, got %d", ErrInvalidConfig, c.MaxDepth)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.Delay < 0:
		return fmt.Errorf("%w: delay must be >= 0, got %s", ErrInvalidConfig, c.Delay)
	case c.BooleanRounds < 1:
		return fmt.Errorf("%w: boolean rounds must be >= 1, got %d", ErrInvalidConfig, c.BooleanRounds)
	case c.UnionMaxColumns < 1:
		return fmt.Errorf("%w: union max columns must be >= 1, got %d", ErrInvalidConfig, c.UnionMaxColumns)
	case c.TimeThreshold <= 0:
		return fmt.Errorf("%w: time threshold must be > 0, got %s", ErrInvalidConfig, c.TimeThreshold)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must be >= 0, got %s", ErrInvalidConfig, c.Timeout)
	case c.MaxPages < 0:
		return fmt.Errorf("%w: max pages must be >= 0, got %d", ErrInvalidConfig, c.MaxPages)
	case c.MaxRPS < 0:
		return fmt.Errorf("%w: max rps must be >= 0, got %g", ErrInvalidConfig, c.MaxRPS)
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: proxy %q is not an absolute URL", ErrInvalidConfig, c.Proxy)
		}
	}
	return nil
}

// start parses StartURL.
func (c *ScanConfig) start() (*url.URL, error) {
	raw := strings.TrimSpace(c.StartURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: start URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: start URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: start URL must use http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: start URL %q has no host", ErrInvalidConfig, raw)
	}
	return u, nil
}
