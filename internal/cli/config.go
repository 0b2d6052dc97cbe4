package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

// fileConfig is the YAML form of a scan configuration. Unset keys keep the
// defaults; durations are Go syntax ("200ms", "2s") or plain seconds (0.2).
type fileConfig struct {
	StartURL        *string        `yaml:"start_url"`
	MaxDepth        *int           `yaml:"max_depth"`
	Concurrency     *int           `yaml:"concurrency"`
	Delay           *duration      `yaml:"delay"`
	RespectRobots   *bool          `yaml:"respect_robots"`
	BooleanRounds   *int           `yaml:"boolean_rounds"`
	UnionMaxColumns *int           `yaml:"union_max_columns"`
	TimeBased       *bool          `yaml:"time_based"`
	TimeThreshold   *duration      `yaml:"time_threshold"`
	ParamFuzz       *bool          `yaml:"param_fuzz"`
	RobotsUserAgent *string        `yaml:"robots_user_agent"`
	JSRender        *bool          `yaml:"js_render"`
	Verbose         *bool          `yaml:"verbose"`
	Quiet           *bool          `yaml:"quiet"`

	Timeout            *duration         `yaml:"timeout"`
	Headers            map[string]string `yaml:"headers"`
	Cookies            map[string]string `yaml:"cookies"`
	Proxy              *string           `yaml:"proxy"`
	InsecureSkipVerify *bool             `yaml:"insecure_skip_verify"`
	MaxPages           *int              `yaml:"max_pages"`
	MaxRPS             *float64          `yaml:"max_rps"`
	Tampers            []string          `yaml:"tamper"`
}

// loadConfigFile reads a YAML scan configuration. Unknown keys are
// rejected.
func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies every key present in the file onto cfg.
func (fc *fileConfig) apply(cfg *engine.ScanConfig) {
	setString(&cfg.StartURL, fc.StartURL)
	setInt(&cfg.MaxDepth, fc.MaxDepth)
	setInt(&cfg.Concurrency, fc.Concurrency)
	setDuration(&cfg.Delay, fc.Delay)
	setBool(&cfg.RespectRobots, fc.RespectRobots)
	setInt(&cfg.BooleanRounds, fc.BooleanRounds)
	setInt(&cfg.UnionMaxColumns, fc.UnionMaxColumns)
	setBool(&cfg.TimeBased, fc.TimeBased)
	setDuration(&cfg.TimeThreshold, fc.TimeThreshold)
	setBool(&cfg.ParamFuzz, fc.ParamFuzz)
	setString(&cfg.RobotsUserAgent, fc.RobotsUserAgent)
	setBool(&cfg.JSRender, fc.JSRender)
	setBool(&cfg.Verbose, fc.Verbose)
	setBool(&cfg.Quiet, fc.Quiet)
	setDuration(&cfg.Timeout, fc.Timeout)
	setString(&cfg.Proxy, fc.Proxy)
	setBool(&cfg.InsecureSkipVerify, fc.InsecureSkipVerify)
	setInt(&cfg.MaxPages, fc.MaxPages)
	if fc.MaxRPS != nil {
		cfg.MaxRPS = *fc.MaxRPS
	}
	if len(fc.Tampers) > 0 {
		cfg.Tampers = fc.Tampers
	}
	if len(fc.Headers) > 0 {
		cfg.Headers = mergeMaps(cfg.Headers, fc.Headers)
	}
	if len(fc.Cookies) > 0 {
		cfg.Cookies = mergeMaps(cfg.Cookies, fc.Cookies)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

// duration decodes a Go duration string or a number of seconds.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.ShortTag() {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = duration(secs * float64(time.Second))
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, s)
	}
	*d = duration(parsed)
	return nil
}

// mergeMaps returns base with over's entries added, over winning.
func mergeMaps(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
