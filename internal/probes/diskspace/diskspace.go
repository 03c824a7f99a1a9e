// Package diskspace provides the disk-space check.
package diskspace

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	units "github.com/docker/go-units"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "disk-space"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check used and available disk space on a path",
		Version:     "1.1.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"path": {
					Type:        "string",
					Description: "Path to check",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"warning": {
					Type:        "number",
					Description: "Warn when more than this percentage is used",
					Default:     float64(90),
				},
				"critical": {
					Type:        "number",
					Description: "Critical when more than this percentage is used",
					Default:     float64(95),
				},
				"min_free": {
					Type:        "string",
					Description: "Critical when less than this much space is free, e.g. 10GB (empty to disable)",
					Default:     "10GB",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	Path     string  `mapstructure:"path"`
	Warning  float64 `mapstructure:"warning"`
	Critical float64 `mapstructure:"critical"`
	MinFree  string  `mapstructure:"min_free"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Warning: 90, Critical: 95, MinFree: "10GB"}
}

// Usage is the space accounting of one filesystem.
type Usage struct {
	Total     uint64
	Free      uint64
	Available uint64
}

// UsedPercent follows df: used blocks over blocks usable by unprivileged
// users.
func (u Usage) UsedPercent() float64 {
	used := u.Total - u.Free
	if used+u.Available == 0 {
		return 0
	}
	return float64(used) / float64(used+u.Available) * 100
}

// Statfs reads filesystem usage for path.
func Statfs(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}
	bsize := uint64(stat.Bsize)
	return Usage{
		Total:     stat.Blocks * bsize,
		Free:      stat.Bfree * bsize,
		Available: stat.Bavail * bsize,
	}, nil
}

// Check is the disk-space check.
type Check struct {
	name    string
	cfg     Config
	minFree int64
	statfs  func(path string) (Usage, error)
}

// New creates a disk-space check.
func New(name string, cfg Config) (*Check, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path argument is required")
	}
	if cfg.Warning > cfg.Critical {
		return nil, fmt.Errorf("warning threshold %v is above critical threshold %v", cfg.Warning, cfg.Critical)
	}
	var minFree int64
	if s := strings.TrimSpace(cfg.MinFree); s != "" {
		var err error
		if minFree, err = units.FromHumanSize(s); err != nil {
			return nil, fmt.Errorf("invalid min_free: %w", err)
		}
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg, minFree: minFree, statfs: Statfs}, nil
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
	return "Disk space on " + c.cfg.Path
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	usage, err := c.statfs(c.cfg.Path)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "failed to stat %s: %v", c.cfg.Path, err), nil
	}

	used := usage.UsedPercent()
	metrics := probe.NewMetrics(
		"free_bytes", float64(usage.Available),
		"total_bytes", float64(usage.Total),
		"used_percent", used,
	)
	free := units.HumanSize(float64(usage.Available))

	if c.minFree > 0 && usage.Available < uint64(c.minFree) {
		return probe.NewResult(c.name, probe.SeverityCritical, "%s free on %s < %s minimum", free, c.cfg.Path, units.HumanSize(float64(c.minFree))).
			WithMetrics(metrics), nil
	}

	severity := threshold.Above(used, c.cfg.Warning, c.cfg.Critical)
	switch severity {
	case probe.SeverityCritical:
		return probe.NewResult(c.name, severity, "%.1f%% used on %s > %v%% critical (%s free)", used, c.cfg.Path, c.cfg.Critical, free).WithMetrics(metrics), nil
	case probe.SeverityWarning:
		return probe.NewResult(c.name, severity, "%.1f%% used on %s > %v%% warning (%s free)", used, c.cfg.Path, c.cfg.Warning, free).WithMetrics(metrics), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "%s free on %s (%.1f%% used)", free, c.cfg.Path, used).WithMetrics(metrics), nil
}
