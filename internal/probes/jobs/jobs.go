// Package jobs checks a batch job status API reporting a root status and
// per-component statuses.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "jobs"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check job statuses reported by a JSON API",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "URL of the jobs status API",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
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
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Check is the job status check.
type Check struct {
	name    string
	cfg     Config
	fetcher fetcher.Fetcher
}

// New creates a job status check.
func New(name string, cfg Config, f fetcher.Fetcher) (*Check, error) {
	cfg.URL = fetcher.NormalizeURL(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
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

func (c *Check) Name() string        { return c.name }
func (c *Check) Description() string { return "Jobs API " + c.cfg.URL }

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	doc, err := c.fetcher.FetchJSON(ctx, c.cfg.URL, c.cfg.Timeout)
	if err != nil {
		if fetcher.IsKind(err, fetcher.Malformed) {
			return probe.NewResult(c.name, probe.SeverityUnknown, "Invalid JSON response from jobs API: %v", err).
				WithMetrics(probe.NewMetrics("root_status", 0)), nil
		}
		return probe.NewResult(c.name, probe.SeverityUnknown, "Failed to connect to jobs API: %v", err).
			WithMetrics(probe.NewMetrics("root_status", 0)), nil
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Unexpected response from jobs API: not a JSON object").
			WithMetrics(probe.NewMetrics("root_status", 0)), nil
	}

	status := strings.ToLower(text(root, "status", "unknown"))
	metrics := probe.NewMetrics("root_status", boolMetric(status == "ok"))

	if status != "ok" {
		detail, _ := json.MarshalIndent(root, "", "  ")
		return probe.NewResult(c.name, probe.SeverityWarning, "Root status %s is %s. Message: %s",
			text(root, "title", "Jobs"), strings.ToUpper(status), flatten(text(root, "message", ""))).
			WithMetrics(metrics).
			WithDetail(string(detail)), nil
	}

	components, _ := root["components"].([]any)
	var failed []string
	for _, raw := range components {
		component, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := text(component, "name", "unknown")
		componentStatus := strings.ToLower(text(component, "status", "unknown"))
		metrics.Set("component_"+name+"_status", boolMetric(componentStatus == "ok"))
		if componentStatus != "ok" {
			failed = append(failed, fmt.Sprintf("Component %s status %s: %s",
				name, strings.ToUpper(componentStatus), flatten(text(component, "message", ""))))
		}
	}

	if len(failed) > 0 {
		return probe.NewResult(c.name, probe.SeverityWarning, "%s", failed[0]).
			WithMetrics(metrics).
			WithDetail(strings.Join(failed, "\n")), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "All jobs and components are healthy").WithMetrics(metrics), nil
}

func text(m map[string]any, key, fallback string) string {
	s, ok := m[key].(string)
	if !ok {
		return fallback
	}
	return s
}

func flatten(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "; ")
}

func boolMetric(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
