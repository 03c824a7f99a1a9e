// Package dbcounters runs count queries against a SQL database and checks
// each count against warning and critical ranges.
package dbcounters

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "db-counters"

// drivers maps the driver argument to a registered database/sql driver.
var drivers = map[string]string{
	"postgres": "pgx",
	"pgx":      "pgx",
	"sqlite":   "sqlite",
}

// Presets are named query sets.
var Presets = map[string]map[string]string{
	"vertica": {
		"nodes_down":       "SELECT COUNT(*) FROM nodes WHERE node_state = 'DOWN'",
		"too_many_ros":     "SELECT COUNT(*) FROM active_events WHERE event_code_description = 'Too Many ROS Containers'",
		"recovery_failure": "SELECT COUNT(*) FROM active_events WHERE event_code_description = 'Recovery Failure'",
		"stale_checkpoint": "SELECT COUNT(*) FROM active_events WHERE event_code_description = 'Stale Checkpoint'",
	},
}

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check counts returned by SQL queries against thresholds",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"dsn": {
					Type:        "string",
					Description: "Data source name (postgres URL or sqlite file)",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"driver": {
					Type:        "string",
					Description: "Database driver",
					Default:     "postgres",
					Enum:        []string{"postgres", "sqlite"},
				},
				"query": {
					Type:        "string",
					Description: "Single count query, reported as metric count",
				},
				"queries": {
					Type:        "map",
					Description: "Count queries keyed by metric name",
				},
				"preset": {
					Type:        "string",
					Description: "Named query set",
					Enum:        []string{"vertica"},
				},
				"warning": {
					Type:        "string",
					Description: "Nagios range on each count that triggers a warning",
				},
				"critical": {
					Type:        "string",
					Description: "Nagios range on each count that is critical",
					Default:     "0",
				},
				"timeout": {
					Type:        "duration",
					Description: "Connect and query timeout",
					Default:     "30s",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	Driver   string            `mapstructure:"driver"`
	DSN      string            `mapstructure:"dsn"`
	Query    string            `mapstructure:"query"`
	Queries  map[string]string `mapstructure:"queries"`
	Preset   string            `mapstructure:"preset"`
	Warning  threshold.Range   `mapstructure:"warning"`
	Critical threshold.Range   `mapstructure:"critical"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

// DefaultConfig returns the argument defaults: any non-zero count is
// critical.
func DefaultConfig() Config {
	return Config{
		Driver:   "postgres",
		Critical: threshold.MustParse("0"),
		Timeout:  30 * time.Second,
	}
}

// counter is one named count query.
type counter struct {
	name  string
	query string
}

// Check is the database counter check.
type Check struct {
	name     string
	cfg      Config
	driver   string
	counters []counter
}

// New creates a database counter check.
func New(name string, cfg Config) (*Check, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn argument is required")
	}
	driver, ok := drivers[strings.ToLower(cfg.Driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	queries := map[string]string{}
	if cfg.Preset != "" {
		preset, ok := Presets[cfg.Preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", cfg.Preset)
		}
		for k, v := range preset {
			queries[k] = v
		}
	}
	for k, v := range cfg.Queries {
		queries[k] = v
	}
	if cfg.Query != "" {
		queries["count"] = cfg.Query
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("one of query, queries or preset is required")
	}

	counters := make([]counter, 0, len(queries))
	for k, v := range queries {
		counters = append(counters, counter{name: k, query: v})
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].name < counters[j].name })

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg, driver: driver, counters: counters}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	cfg := DefaultConfig()
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return fmt.Sprintf("%d %s counters", len(c.counters), c.cfg.Driver)
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	db, err := sql.Open(c.driver, c.cfg.DSN)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Invalid database configuration: %v", err), nil
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return probe.NewResult(c.name, probe.SeverityCritical, "Cannot connect to database: %v", err), nil
	}

	var (
		metrics  probe.Metrics
		worst    = probe.SeverityOK
		breaches []string
	)
	for _, ctr := range c.counters {
		var n int64
		if err := db.QueryRowContext(ctx, ctr.query).Scan(&n); err != nil {
			return probe.NewResult(c.name, probe.SeverityUnknown, "Query %s failed: %v", ctr.name, err).
				WithMetrics(metrics).
				WithDetail(ctr.query), nil
		}
		metrics.Set(ctr.name, float64(n))

		severity := threshold.Evaluate(float64(n), c.cfg.Warning, c.cfg.Critical)
		if severity != probe.SeverityOK {
			breaches = append(breaches, fmt.Sprintf("%s=%d (%s)", ctr.name, n, strings.ToLower(severity.String())))
		}
		worst = worst.Worse(severity)
	}

	if len(breaches) > 0 {
		return probe.NewResult(c.name, worst, "Database counters out of range: %s", strings.Join(breaches, ", ")).
			WithMetrics(metrics), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "All %d database counters within range", len(c.counters)).
		WithMetrics(metrics), nil
}
