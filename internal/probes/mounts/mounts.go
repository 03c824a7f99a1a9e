// Package mounts reports filesystems that are mounted read-only.
package mounts

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "ro-mounts"

// DefaultExcludes are mount point prefixes that are never reported.
var DefaultExcludes = []string{"/proc", "/sys", "/dev", "/run", "/tmp", "/var/lib/docker"}

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Check for filesystems mounted read-only",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Optional: probe.WithRemoteArguments(map[string]probe.ArgumentSpec{
				"exclude": {
					Type:        "list",
					Description: "Additional mount point prefixes to ignore",
				},
				"critical_mounts": {
					Type:        "list",
					Description: "Mount points that are critical when read-only, besides / and /var",
				},
				"timeout": {
					Type:        "duration",
					Description: "Command timeout",
					Default:     "30s",
				},
			}),
		},
	}
}

// Config holds the check arguments.
type Config struct {
	probe.Remote   `mapstructure:",squash"`
	Exclude        []string      `mapstructure:"exclude"`
	CriticalMounts []string      `mapstructure:"critical_mounts"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Mount is one line of mount(8) output.
type Mount struct {
	Device     string `json:"device"`
	MountPoint string `json:"mount_point"`
	FSType     string `json:"fs_type"`
	Options    string `json:"options"`
}

// ReadOnly reports whether the mount options include ro.
func (m Mount) ReadOnly() bool {
	for _, opt := range strings.Split(m.Options, ",") {
		if strings.TrimSpace(opt) == "ro" {
			return true
		}
	}
	return false
}

var mountLine = regexp.MustCompile(`(\S+) on (\S+) type (\S+) \(([^)]+)\)`)

// ParseMounts parses mount(8) output. Lines that do not look like mounts are
// skipped.
func ParseMounts(output string) []Mount {
	var mounts []Mount
	for _, line := range strings.Split(output, "\n") {
		m := mountLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mounts = append(mounts, Mount{Device: m[1], MountPoint: m[2], FSType: m[3], Options: m[4]})
	}
	return mounts
}

// Check is the read-only mounts check.
type Check struct {
	name     string
	cfg      Config
	excludes []string
	exec     executor.Executor
}

// New creates a read-only mounts check.
func New(name string, cfg Config, exec executor.Executor) (*Check, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if name == "" {
		name = Name
	}
	excludes := append(append([]string(nil), DefaultExcludes...), cfg.Exclude...)
	return &Check{name: name, cfg: cfg, excludes: excludes, exec: cfg.Remote.Executor(exec)}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	var cfg Config
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Executor)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	if c.cfg.SSHHost != "" {
		return "Read-only mounts on " + c.cfg.SSHHost
	}
	return "Read-only mounts"
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	output, err := c.exec.Run(ctx, []string{"mount"}, c.cfg.Timeout)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error checking mounts: %v", err).
			WithMetrics(probe.NewMetrics("ro_mounts_count", 0)), nil
	}

	var readOnly, critical, warning []Mount
	for _, m := range ParseMounts(output) {
		if !m.ReadOnly() || c.excluded(m.MountPoint) {
			continue
		}
		readOnly = append(readOnly, m)
		if c.critical(m.MountPoint) {
			critical = append(critical, m)
		} else {
			warning = append(warning, m)
		}
	}

	metrics := probe.NewMetrics(
		"ro_mounts_count", float64(len(readOnly)),
		"critical_mounts_count", float64(len(critical)),
		"warning_mounts_count", float64(len(warning)),
	)

	switch {
	case len(critical) > 0:
		return probe.NewResult(c.name, probe.SeverityCritical, "Critical filesystems mounted read-only: %s", mountPoints(critical)).
			WithMetrics(metrics).WithDetail(detail(readOnly)), nil
	case len(warning) > 0:
		return probe.NewResult(c.name, probe.SeverityWarning, "Non-critical filesystems mounted read-only: %s", mountPoints(warning)).
			WithMetrics(metrics).WithDetail(detail(readOnly)), nil
	}
	return probe.NewResult(c.name, probe.SeverityOK, "No read-only mounts found").WithMetrics(metrics), nil
}

func (c *Check) excluded(mountPoint string) bool {
	for _, prefix := range c.excludes {
		if underPath(mountPoint, prefix) {
			return true
		}
	}
	return false
}

func (c *Check) critical(mountPoint string) bool {
	if mountPoint == "/" || underPath(mountPoint, "/var") {
		return true
	}
	for _, p := range c.cfg.CriticalMounts {
		if mountPoint == p {
			return true
		}
	}
	return false
}

// underPath reports whether path is prefix or lies below it.
func underPath(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func mountPoints(mounts []Mount) string {
	points := make([]string, len(mounts))
	for i, m := range mounts {
		points[i] = m.MountPoint
	}
	return strings.Join(points, ", ")
}

func detail(mounts []Mount) string {
	data, err := json.MarshalIndent(mounts, "", "  ")
	if err != nil {
		return fmt.Sprint(mounts)
	}
	return string(data)
}
