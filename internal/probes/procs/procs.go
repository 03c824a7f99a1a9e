// Package procs counts running processes by name and checks the count
// against Nagios ranges.
package procs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Name is the check type name.
const Name = "procs"

// psColumns is the ps output format. comm comes last because it may contain
// spaces.
const psColumns = "uid,pid,ppid,vsz,rss,stat,bsdtime,pcpu,user:32,comm"

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Count running processes and check the count against ranges",
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"command": {
					Type:        "string",
					Description: "Process name as passed to ps -C",
				},
			},
			Optional: probe.WithRemoteArguments(map[string]probe.ArgumentSpec{
				"warning": {
					Type:        "string",
					Description: "Nagios range on the process count that triggers a warning, e.g. 1:10",
				},
				"critical": {
					Type:        "string",
					Description: "Nagios range on the process count that triggers a critical result, e.g. 1:",
				},
				"state_flags": {
					Type:        "string",
					Description: "Only count processes with any of these ps state flags, e.g. R,Z,D",
				},
				"ppid": {
					Type:        "integer",
					Description: "Only count children of this parent process ID",
				},
				"min_vsz": {
					Type:        "integer",
					Description: "Only count processes with VSZ above this many KiB",
				},
				"min_rss": {
					Type:        "integer",
					Description: "Only count processes with RSS above this many KiB",
				},
				"min_pcpu": {
					Type:        "number",
					Description: "Only count processes using more than this CPU percentage",
				},
				"user": {
					Type:        "string",
					Description: "Only count processes owned by this user name or ID",
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
	probe.Remote `mapstructure:",squash"`
	Command      string          `mapstructure:"command"`
	Warning      threshold.Range `mapstructure:"warning"`
	Critical     threshold.Range `mapstructure:"critical"`
	StateFlags   string          `mapstructure:"state_flags"`
	PPID         *int            `mapstructure:"ppid"`
	MinVSZ       int64           `mapstructure:"min_vsz"`
	MinRSS       int64           `mapstructure:"min_rss"`
	MinPCPU      float64         `mapstructure:"min_pcpu"`
	User         string          `mapstructure:"user"`
	Timeout      time.Duration   `mapstructure:"timeout"`
}

// Process is one row of ps output.
type Process struct {
	UID     int
	PID     int
	PPID    int
	VSZ     int64
	RSS     int64
	Stat    string
	Time    string
	PCPU    float64
	User    string
	Command string
}

// ParseProcesses parses ps output in the psColumns format, skipping the
// header line.
func ParseProcesses(output string) ([]Process, error) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	var procs []Process
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 10 {
			return nil, fmt.Errorf("unexpected ps output line %q", line)
		}
		p := Process{
			Stat:    fields[5],
			Time:    fields[6],
			User:    fields[8],
			Command: strings.Join(fields[9:], " "),
		}
		var err error
		if p.UID, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("bad uid in %q", line)
		}
		if p.PID, err = strconv.Atoi(fields[1]); err != nil {
			return nil, fmt.Errorf("bad pid in %q", line)
		}
		if p.PPID, err = strconv.Atoi(fields[2]); err != nil {
			return nil, fmt.Errorf("bad ppid in %q", line)
		}
		if p.VSZ, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
			return nil, fmt.Errorf("bad vsz in %q", line)
		}
		if p.RSS, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
			return nil, fmt.Errorf("bad rss in %q", line)
		}
		if p.PCPU, err = strconv.ParseFloat(fields[7], 64); err != nil {
			return nil, fmt.Errorf("bad pcpu in %q", line)
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// Check is the process count check.
type Check struct {
	name string
	cfg  Config
	exec executor.Executor
}

// New creates a process count check.
func New(name string, cfg Config, exec executor.Executor) (*Check, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command argument is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg, exec: cfg.Remote.Executor(exec)}, nil
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
	return fmt.Sprintf("%s processes", c.cfg.Command)
}

// Argv returns the ps command line.
func (c *Check) Argv() []string {
	return []string{"ps", "-C", c.cfg.Command, "-o", psColumns}
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	output, err := c.exec.Run(ctx, c.Argv(), c.cfg.Timeout)
	if err != nil {
		// ps exits 1 when nothing matches
		f, ok := executor.AsFailure(err)
		if !ok || f.Kind != executor.NonZeroExit || f.ExitCode != 1 || strings.Count(strings.TrimSpace(f.Output), "\n") > 0 {
			return probe.NewResult(c.name, probe.SeverityUnknown, "Command failed: %v", err), nil
		}
		output = f.Output
	}

	procs, err := ParseProcesses(output)
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "%v", err), nil
	}

	count := 0
	for _, p := range procs {
		if c.matches(p) {
			count++
		}
	}

	metrics := probe.NewMetrics("count", float64(count))
	severity := threshold.Evaluate(float64(count), c.cfg.Warning, c.cfg.Critical)
	return probe.NewResult(c.name, severity, "%d %s processes", count, c.cfg.Command).WithMetrics(metrics), nil
}

func (c *Check) matches(p Process) bool {
	if c.cfg.StateFlags != "" && !strings.ContainsAny(p.Stat, strings.ReplaceAll(c.cfg.StateFlags, ",", "")) {
		return false
	}
	if c.cfg.PPID != nil && p.PPID != *c.cfg.PPID {
		return false
	}
	if c.cfg.MinVSZ > 0 && p.VSZ <= c.cfg.MinVSZ {
		return false
	}
	if c.cfg.MinRSS > 0 && p.RSS <= c.cfg.MinRSS {
		return false
	}
	if c.cfg.MinPCPU > 0 && p.PCPU <= c.cfg.MinPCPU {
		return false
	}
	if c.cfg.User != "" {
		if uid, err := strconv.Atoi(c.cfg.User); err == nil {
			return p.UID == uid
		}
		return p.User == c.cfg.User
	}
	return true
}
