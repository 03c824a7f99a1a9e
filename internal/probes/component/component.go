// Package component checks ETL components through their per-component
// status endpoint, GET <base>/api/component/<name>.
package component

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jandubois/healthmon/internal/fetcher"
	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "component-status"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check ETL component status and update freshness",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "Base URL of the component API (host[:port] or full URL)",
				},
				"components": {
					Type:        "list",
					Description: "Component names to check",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"warning": {
					Type:        "integer",
					Description: "Minutes without update before warning",
					Default:     10,
				},
				"critical": {
					Type:        "integer",
					Description: "Minutes without update before critical (default: twice warning)",
				},
				"username": {
					Type:        "string",
					Description: "Basic auth user",
				},
				"password": {
					Type:        "string",
					Description: "Basic auth password",
				},
				"timeout": {
					Type:        "duration",
					Description: "Request timeout per component",
					Default:     "10s",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	URL        string        `mapstructure:"url"`
	Components []string      `mapstructure:"components"`
	Warning    int           `mapstructure:"warning"`
	Critical   int           `mapstructure:"critical"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

const maxParallelRequests = 4

// Check is the component status check.
type Check struct {
	name    string
	cfg     Config
	base    *url.URL
	fetcher fetcher.Fetcher
	now     func() time.Time
}

// New creates a component status check.
func New(name string, cfg Config, f fetcher.Fetcher, now func() time.Time) (*Check, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	if len(cfg.Components) == 0 {
		return nil, fmt.Errorf("components argument is required")
	}
	base, err := url.Parse(strings.TrimSuffix(fetcher.NormalizeURL(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if cfg.Username != "" {
		base.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	if cfg.Warning <= 0 {
		cfg.Warning = 10
	}
	if cfg.Critical <= 0 {
		cfg.Critical = cfg.Warning * 2
	}
	if cfg.Warning > cfg.Critical {
		return nil, fmt.Errorf("warning (%d minutes) is above critical (%d minutes)", cfg.Warning, cfg.Critical)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if name == "" {
		name = Name
	}
	if now == nil {
		now = time.Now
	}
	return &Check{name: name, cfg: cfg, base: base, fetcher: f, now: now}, nil
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
	return fmt.Sprintf("ETL components %s (warning %dm, critical %dm)",
		strings.Join(c.cfg.Components, ", "), c.cfg.Warning, c.cfg.Critical)
}

// componentState is what one endpoint reported.
type componentState struct {
	Status  string     `json:"status"`
	Updated *time.Time `json:"updated,omitempty"`
	Error   string     `json:"error,omitempty"`
	age     time.Duration
}

// URLFor returns the status endpoint of a component.
func (c *Check) URLFor(component string) string {
	return c.base.JoinPath("api", "component", component).String()
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	states := make([]componentState, len(c.cfg.Components))

	var g errgroup.Group
	g.SetLimit(maxParallelRequests)
	for i, component := range c.cfg.Components {
		g.Go(func() error {
			states[i] = c.fetch(ctx, component)
			return nil
		})
	}
	g.Wait()

	warningAge := time.Duration(c.cfg.Warning) * time.Minute
	criticalAge := time.Duration(c.cfg.Critical) * time.Minute
	details := make(map[string]componentState, len(states))

	var metrics probe.Metrics
	var critical, warning []string
	for i, component := range c.cfg.Components {
		state := states[i]
		details[component] = state
		metrics.Set(component+"_status", boolMetric(state.Status == "ok"))

		if state.Status != "ok" {
			critical = append(critical, component)
			continue
		}
		if state.Updated == nil {
			continue
		}
		minutes := state.age.Minutes()
		metrics.Set(component+"_minutes_since_update", math.Round(minutes*100)/100)
		switch {
		case state.age > criticalAge:
			critical = append(critical, component)
		case state.age > warningAge:
			warning = append(warning, component)
		}
	}

	total := len(c.cfg.Components)
	metrics.Set("total_components", float64(total))
	metrics.Set("critical_components", float64(len(critical)))
	metrics.Set("warning_components", float64(len(warning)))
	metrics.Set("ok_components", float64(total-len(critical)-len(warning)))

	detail, _ := json.MarshalIndent(details, "", "  ")

	var result probe.Result
	switch {
	case len(critical) > 0:
		result = probe.NewResult(c.name, probe.SeverityCritical, "Components with issues: %s", strings.Join(critical, ", "))
	case len(warning) > 0:
		result = probe.NewResult(c.name, probe.SeverityWarning, "Components not recently updated: %s", strings.Join(warning, ", "))
	default:
		result = probe.NewResult(c.name, probe.SeverityOK, "All %d components are healthy and recently updated", total)
	}
	return result.WithMetrics(metrics).WithDetail(string(detail)), nil
}

func (c *Check) fetch(ctx context.Context, component string) componentState {
	doc, err := c.fetcher.FetchJSON(ctx, c.URLFor(component), c.cfg.Timeout)
	if err != nil {
		return componentState{Status: "error", Error: err.Error()}
	}
	body, ok := doc.(map[string]any)
	if !ok {
		return componentState{Status: "error", Error: "response is not a JSON object"}
	}

	status, _ := body["status"].(string)
	state := componentState{Status: strings.ToLower(status)}
	if raw, ok := body["updated"].(string); ok && raw != "" {
		updated, err := probe.ParseTimestamp(raw)
		if err != nil {
			state.Error = err.Error()
			return state
		}
		state.Updated = &updated
		state.age = c.now().Sub(updated)
	}
	return state
}

func boolMetric(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
