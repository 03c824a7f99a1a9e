// Package jsonvalue checks a single value inside a JSON document, selected
// with a JSONPath expression.
package jsonvalue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oliveagle/jsonpath"

	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "json-value"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check a value selected from a JSON API with JSONPath",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "URL of the JSON document",
				},
				"path": {
					Type:        "string",
					Description: "JSONPath expression, e.g. $.queue.depth",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"expect": {
					Type:        "string",
					Description: "Value the field must equal",
				},
				"warning": {
					Type:        "string",
					Description: "Nagios range for numeric values that triggers a warning",
				},
				"critical": {
					Type:        "string",
					Description: "Nagios range for numeric values that triggers a critical result",
				},
				"timeout": {
					Type:        "duration",
					Description: "Request timeout",
					Default:     "30s",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	URL      string          `mapstructure:"url"`
	Path     string          `mapstructure:"path"`
	Expect   *string         `mapstructure:"expect"`
	Warning  threshold.Range `mapstructure:"warning"`
	Critical threshold.Range `mapstructure:"critical"`
	Timeout  time.Duration   `mapstructure:"timeout"`
}

// Check is the JSON value check.
type Check struct {
	name    string
	cfg     Config
	fetcher fetcher.Fetcher
}

// New creates a JSON value check.
func New(name string, cfg Config, f fetcher.Fetcher) (*Check, error) {
	cfg.URL = fetcher.NormalizeURL(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	if !strings.HasPrefix(cfg.Path, "$") {
		return nil, fmt.Errorf("path must be a JSONPath expression starting with $, got %q", cfg.Path)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg, fetcher: f}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	var cfg Config
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Fetcher)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return fmt.Sprintf("%s at %s", c.cfg.Path, c.cfg.URL)
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	doc, err := c.fetcher.FetchJSON(ctx, c.cfg.URL, c.cfg.Timeout)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityCritical, "Could not fetch %s: %v", c.cfg.URL, err), nil
	}

	value, err := jsonpath.JsonPathLookup(doc, c.cfg.Path)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "%s not found: %v", c.cfg.Path, err), nil
	}

	if c.cfg.Expect != nil {
		actual := render(value)
		if actual != *c.cfg.Expect {
			return probe.NewResult(c.name, probe.SeverityCritical, "%s is %q, expected %q", c.cfg.Path, actual, *c.cfg.Expect), nil
		}
		if c.cfg.Warning.IsZero() && c.cfg.Critical.IsZero() {
			return probe.NewResult(c.name, probe.SeverityOK, "%s is %q", c.cfg.Path, actual), nil
		}
	}

	number, ok := numeric(value)
	if !ok {
		if c.cfg.Warning.IsZero() && c.cfg.Critical.IsZero() {
			return probe.NewResult(c.name, probe.SeverityOK, "%s is %s", c.cfg.Path, render(value)), nil
		}
		return probe.NewResult(c.name, probe.SeverityUnknown, "%s is not numeric: %s", c.cfg.Path, render(value)), nil
	}

	metrics := probe.NewMetrics("value", number)
	switch severity := threshold.Evaluate(number, c.cfg.Warning, c.cfg.Critical); severity {
	case probe.SeverityCritical:
		return probe.NewResult(c.name, severity, "%s is %v (critical: %s)", c.cfg.Path, number, c.cfg.Critical).WithMetrics(metrics), nil
	case probe.SeverityWarning:
		return probe.NewResult(c.name, severity, "%s is %v (warning: %s)", c.cfg.Path, number, c.cfg.Warning).WithMetrics(metrics), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "%s is %v", c.cfg.Path, number).WithMetrics(metrics), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		return 0, false
	}
	return probe.Numeric(v)
}

func render(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}
