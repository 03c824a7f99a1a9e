// Package mongohealth checks the health endpoint of a MongoDB-backed
// service: the engine must report itself alive and the checks required by
// the selected mode must pass.
package mongohealth

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
const Name = "mongo-health"

// requirement is a field of the health document that must be truthy.
type requirement struct {
	key   string
	label string
}

var (
	migrations = requirement{"mongrations_current", "Current migrations"}
	search     = requirement{"search_reachable", "Search service"}
	siteAPI    = requirement{"site_api_reachable", "Site API"}
)

// modes maps a mode to its required checks.
var modes = map[int][]requirement{
	1: {migrations, search},
	2: {search, siteAPI},
	3: {migrations, search},
}

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check that a MongoDB engine is alive and its required health checks pass",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"url": {
					Type:        "string",
					Description: "URL of the health endpoint",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"mode": {
					Type:        "integer",
					Description: "1=migrations+search, 2=search+site API, 3=migrations+search",
					Default:     1,
					Enum:        []string{"1", "2", "3"},
				},
				"timeout": {
					Type:        "duration",
					Description: "Request timeout",
					Default:     "10s",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	URL     string        `mapstructure:"url"`
	Mode    int           `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the argument defaults.
func DefaultConfig() Config {
	return Config{Mode: 1, Timeout: 10 * time.Second}
}

// Check is the MongoDB health check.
type Check struct {
	name     string
	cfg      Config
	required []requirement
	fetcher  fetcher.Fetcher
}

// New creates a MongoDB health check.
func New(name string, cfg Config, f fetcher.Fetcher) (*Check, error) {
	cfg.URL = fetcher.NormalizeURL(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	required, ok := modes[cfg.Mode]
	if !ok {
		return nil, fmt.Errorf("invalid mode %d (expected 1, 2 or 3)", cfg.Mode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg, required: required, fetcher: f}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	cfg := DefaultConfig()
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Fetcher)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return fmt.Sprintf("MongoDB health at %s (mode %d)", c.cfg.URL, c.cfg.Mode)
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	metrics := probe.NewMetrics("engine_alive", 0, "check_count", 0, "passing_checks", 0)

	doc, err := c.fetcher.FetchJSON(ctx, c.cfg.URL, c.cfg.Timeout)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityCritical, "Error connecting to MongoDB health endpoint: %v", err).
			WithMetrics(metrics), nil
	}
	health, ok := doc.(map[string]any)
	if !ok || len(health) == 0 {
		return probe.NewResult(c.name, probe.SeverityCritical, "Invalid response format from MongoDB health endpoint").
			WithMetrics(metrics), nil
	}

	if !truthy(health["alive"]) {
		return probe.NewResult(c.name, probe.SeverityCritical, "MongoDB engine is not alive").WithMetrics(metrics), nil
	}
	metrics.Set("engine_alive", 1)
	metrics.Set("check_count", float64(len(c.required)))

	var failing []string
	passing := 0
	for _, req := range c.required {
		if truthy(health[req.key]) {
			passing++
			metrics.Set("check_"+req.key, 1)
			continue
		}
		metrics.Set("check_"+req.key, 0)
		failing = append(failing, req.label)
	}
	metrics.Set("passing_checks", float64(passing))

	detail, _ := json.MarshalIndent(health, "", "  ")
	if len(failing) > 0 {
		return probe.NewResult(c.name, probe.SeverityCritical, "MongoDB checks failing: %s", strings.Join(failing, ", ")).
			WithMetrics(metrics).
			WithDetail(string(detail)), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "MongoDB engine alive and all %d checks passing", len(c.required)).
		WithMetrics(metrics).
		WithDetail(string(detail)), nil
}

// truthy treats false, zero, empty and missing values as failing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}
