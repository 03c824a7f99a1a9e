// Package website checks that a web page answers with the expected status,
// content and response time.
package website

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "website"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check website status code, content and response time",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "URL of the website",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"pattern": {
					Type:        "string",
					Description: "Regular expression the response body must match",
				},
				"expected_status": {
					Type:        "integer",
					Description: "Expected HTTP status code",
					Default:     200,
				},
				"warning": {
					Type:        "duration",
					Description: "Response time above which to warn",
					Default:     "1s",
				},
				"critical": {
					Type:        "duration",
					Description: "Response time above which the check is critical",
					Default:     "3s",
				},
				"insecure": {
					Type:        "boolean",
					Description: "Skip TLS certificate verification",
					Default:     false,
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
	URL            string        `mapstructure:"url"`
	Pattern        string        `mapstructure:"pattern"`
	ExpectedStatus int           `mapstructure:"expected_status"`
	Warning        time.Duration `mapstructure:"warning"`
	Critical       time.Duration `mapstructure:"critical"`
	Insecure       bool          `mapstructure:"insecure"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the argument defaults.
func DefaultConfig() Config {
	return Config{
		ExpectedStatus: 200,
		Warning:        time.Second,
		Critical:       3 * time.Second,
		Timeout:        30 * time.Second,
	}
}

// Check is the website check.
type Check struct {
	name    string
	cfg     Config
	pattern *regexp.Regexp
	getter  fetcher.Getter
}

// New creates a website check.
func New(name string, cfg Config, getter fetcher.Getter) (*Check, error) {
	cfg.URL = fetcher.NormalizeURL(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	if cfg.Warning > cfg.Critical {
		return nil, fmt.Errorf("warning %s is above critical %s", cfg.Warning, cfg.Critical)
	}
	c := &Check{name: name, cfg: cfg, getter: getter}
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		c.pattern = re
	}
	if c.name == "" {
		c.name = Name
	}
	return c, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	cfg := DefaultConfig()
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	getter := env.Getter
	if cfg.Insecure {
		getter = fetcher.NewHTTP(fetcher.Options{Insecure: true})
	}
	return New(name, cfg, getter)
}

func (c *Check) Name() string        { return c.name }
func (c *Check) Description() string { return "Website " + c.cfg.URL }

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	resp, err := c.getter.Fetch(ctx, c.cfg.URL, c.cfg.Timeout)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityCritical, "%s - %v", c.cfg.URL, err), nil
	}

	elapsed := resp.Elapsed
	metrics := probe.NewMetrics(
		"response_time_ms", float64(elapsed.Microseconds())/1000,
		"status_code", resp.StatusCode,
		"size_bytes", len(resp.Body),
	)

	if c.cfg.ExpectedStatus != 0 && resp.StatusCode != c.cfg.ExpectedStatus {
		return probe.NewResult(c.name, probe.SeverityCritical, "HTTP %d - Expected %d - %s - %s",
			resp.StatusCode, c.cfg.ExpectedStatus, c.cfg.URL, round(elapsed)).WithMetrics(metrics), nil
	}
	if c.pattern != nil && !c.pattern.Match(resp.Body) {
		return probe.NewResult(c.name, probe.SeverityCritical, "Content check failed - Pattern not found - %s - %s",
			c.cfg.URL, round(elapsed)).WithMetrics(metrics), nil
	}

	var result probe.Result
	switch threshold.Above(elapsed.Seconds(), c.cfg.Warning.Seconds(), c.cfg.Critical.Seconds()) {
	case probe.SeverityCritical:
		result = probe.NewResult(c.name, probe.SeverityCritical, "Response time %s exceeds %s threshold - %s", round(elapsed), c.cfg.Critical, c.cfg.URL)
	case probe.SeverityWarning:
		result = probe.NewResult(c.name, probe.SeverityWarning, "Response time %s exceeds %s threshold - %s", round(elapsed), c.cfg.Warning, c.cfg.URL)
	default:
		result = probe.NewResult(c.name, probe.SeverityOK, "Website responding in %s - %s", round(elapsed), c.cfg.URL)
	}
	return result.WithMetrics(metrics), nil
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
