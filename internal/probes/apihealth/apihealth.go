// Package apihealth checks a JSON status API reporting an overall status and
// a list of subcomponents with last-update timestamps.
//
// The expected document looks like:
//
//	{
//	  "status": "ok",
//	  "subcomponents": [
//	    {"name": "namenode", "status": "ok", "updated": "2024-05-01 12:00:00", "message": "..."}
//	  ]
//	}
package apihealth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "api-health"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check a JSON status API and the freshness of its subcomponents",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "URL of the JSON status API",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"update_minutes": {
					Type:        "integer",
					Description: "Maximum minutes since a component's last update (0 to disable)",
					Default:     0,
				},
				"required_components": {
					Type:        "list",
					Description: "Components that must be present",
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
	URL                string        `mapstructure:"url"`
	UpdateMinutes      int           `mapstructure:"update_minutes"`
	RequiredComponents []string      `mapstructure:"required_components"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// Check is the API health check.
type Check struct {
	name    string
	cfg     Config
	fetcher fetcher.Fetcher
	now     func() time.Time
}

// New creates an API health check.
func New(name string, cfg Config, f fetcher.Fetcher, now func() time.Time) (*Check, error) {
	cfg.URL = fetcher.NormalizeURL(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	if cfg.UpdateMinutes < 0 {
		return nil, fmt.Errorf("update_minutes must not be negative")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if name == "" {
		name = Name
	}
	if now == nil {
		now = time.Now
	}
	return &Check{name: name, cfg: cfg, fetcher: f, now: now}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	var cfg Config
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Fetcher, env.Now)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	if c.cfg.UpdateMinutes > 0 {
		return fmt.Sprintf("Status API %s (updated within %d minutes)", c.cfg.URL, c.cfg.UpdateMinutes)
	}
	return "Status API " + c.cfg.URL
}

type issue struct {
	severity probe.Severity
	message  string
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	doc, err := c.fetcher.FetchJSON(ctx, c.cfg.URL, c.cfg.Timeout)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityCritical, "Could not retrieve or parse JSON data from %s: %v", c.cfg.URL, err), nil
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Unexpected response from %s: not a JSON object", c.cfg.URL), nil
	}

	rawStatus, ok := root["status"]
	if !ok {
		return probe.NewResult(c.name, probe.SeverityUnknown, `Response from %s has no "status" field`, c.cfg.URL), nil
	}
	if status := fmt.Sprint(rawStatus); !strings.EqualFold(status, "ok") {
		return probe.NewResult(c.name, probe.SeverityWarning, "Hadoop: %s", status), nil
	}

	var components []any
	if raw, ok := root["subcomponents"]; ok && raw != nil {
		if components, ok = raw.([]any); !ok {
			return probe.NewResult(c.name, probe.SeverityUnknown, `Response from %s has a malformed "subcomponents" field`, c.cfg.URL), nil
		}
	}

	var issues []issue
	seen := make(map[string]bool)
	healthy := 0
	for i, raw := range components {
		component, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, issue{probe.SeverityUnknown, fmt.Sprintf("Component #%d is not an object", i+1)})
			continue
		}
		name := stringField(component, "name", "unknown")
		seen[name] = true

		if iss, ok := c.checkComponent(name, component); !ok {
			issues = append(issues, iss)
			continue
		}
		healthy++
	}

	for _, name := range c.cfg.RequiredComponents {
		if !seen[name] {
			issues = append(issues, issue{probe.SeverityWarning, fmt.Sprintf("Required component %q is missing", name)})
		}
	}

	metrics := probe.NewMetrics(
		"components_total", len(components),
		"components_ok", healthy,
	)

	if len(issues) > 0 {
		severity := probe.SeverityOK
		messages := make([]string, len(issues))
		for i, iss := range issues {
			severity = severity.Worse(iss.severity)
			messages[i] = iss.message
		}
		return probe.NewResult(c.name, severity, "%s", strings.Join(messages, "; ")).WithMetrics(metrics), nil
	}

	message := `All components have status "ok"`
	if c.cfg.UpdateMinutes > 0 {
		message += fmt.Sprintf(" and have been updated within %d minutes", c.cfg.UpdateMinutes)
	}
	return probe.NewResult(c.name, probe.SeverityOK, "%s", message).WithMetrics(metrics), nil
}

func (c *Check) checkComponent(name string, component map[string]any) (issue, bool) {
	rawStatus, ok := component["status"]
	if !ok {
		return issue{probe.SeverityUnknown, fmt.Sprintf("Component %q has no status", name)}, false
	}
	if status := fmt.Sprint(rawStatus); !strings.EqualFold(status, "ok") {
		return issue{probe.SeverityWarning, fmt.Sprintf("Component %q has status %q and message: %s",
			name, status, stringField(component, "message", "No message"))}, false
	}

	if c.cfg.UpdateMinutes == 0 {
		return issue{}, true
	}
	rawUpdated, ok := component["updated"]
	if !ok {
		return issue{probe.SeverityUnknown, fmt.Sprintf("Component %q has no update time", name)}, false
	}
	updated, err := probe.ParseTimestamp(fmt.Sprint(rawUpdated))
	if err != nil {
		return issue{probe.SeverityWarning, fmt.Sprintf("Error parsing update time for component %q: %v", name, err)}, false
	}

	limit := time.Duration(c.cfg.UpdateMinutes) * time.Minute
	if age := c.now().Sub(updated); age > limit {
		return issue{probe.SeverityWarning, fmt.Sprintf("Component %q has not been updated in %s (stale, limit %s)",
			name, age.Round(time.Second), limit)}, false
	}
	return issue{}, true
}

func stringField(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}
