// Package hadoop provides the command-backed Hadoop cluster checks: overall
// health, HDFS capacity, live DataNodes and the installed version.
package hadoop

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/threshold"
)

// Check type names.
const (
	HealthName   = "hadoop-health"
	CapacityName = "hdfs-capacity"
	DataNodeName = "datanode-status"
	VersionName  = "hadoop-version"
)

// Config holds the arguments shared by all Hadoop checks.
type Config struct {
	probe.Remote `mapstructure:",squash"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// Warning and Critical are HDFS used-percent thresholds.
	Warning  float64 `mapstructure:"warning"`
	Critical float64 `mapstructure:"critical"`
}

// DefaultConfig returns the defaults: warn above 90%, critical above 95%.
func DefaultConfig() Config {
	return Config{Warning: 90, Critical: 95}
}

func describe(name, description string, thresholds bool) probe.Description {
	optional := map[string]probe.ArgumentSpec{
		"timeout": {
			Type:        "duration",
			Description: "Command timeout",
		},
	}
	if thresholds {
		optional["warning"] = probe.ArgumentSpec{
			Type:        "number",
			Description: "Warn when more than this percentage of HDFS is used",
			Default:     float64(90),
		}
		optional["critical"] = probe.ArgumentSpec{
			Type:        "number",
			Description: "Critical when more than this percentage of HDFS is used",
			Default:     float64(95),
		}
	}
	return probe.Description{
		Name:        name,
		Description: description,
		Version:     "1.0.0",
		Arguments: probe.Arguments{
			Optional: probe.WithRemoteArguments(optional),
		},
	}
}

// Descriptions returns the descriptions of all Hadoop check types.
func Descriptions() []probe.Description {
	return []probe.Description{
		describe(HealthName, "Check cluster health reported by 'hadoop health -json'", false),
		describe(CapacityName, "Check used HDFS capacity from 'hdfs dfsadmin -report'", true),
		describe(DataNodeName, "Check that HDFS has live DataNodes", false),
		describe(VersionName, "Report the installed Hadoop version", false),
	}
}

// Kind selects which Hadoop check a Check performs.
type Kind string

const (
	Health   Kind = HealthName
	Capacity Kind = CapacityName
	DataNode Kind = DataNodeName
	Version  Kind = VersionName
)

// Check is one of the Hadoop checks.
type Check struct {
	name string
	kind Kind
	cfg  Config
	exec executor.Executor
}

// New creates a Hadoop check. exec runs the hadoop/hdfs commands locally; it
// is wrapped in ssh when cfg names a remote host.
func New(name string, kind Kind, cfg Config, exec executor.Executor) (*Check, error) {
	switch kind {
	case Health, Capacity, DataNode, Version:
	default:
		return nil, fmt.Errorf("unknown hadoop check %q", kind)
	}
	if cfg.Warning > cfg.Critical {
		return nil, fmt.Errorf("warning threshold %v is above critical threshold %v", cfg.Warning, cfg.Critical)
	}
	if name == "" {
		name = string(kind)
	}
	return &Check{name: name, kind: kind, cfg: cfg, exec: cfg.Remote.Executor(exec)}, nil
}

// Builder returns a registry builder for kind.
func Builder(kind Kind) func(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	return func(name string, args map[string]any, env probe.Env) (probe.Check, error) {
		cfg := DefaultConfig()
		if err := probe.DecodeArgs(args, &cfg); err != nil {
			return nil, err
		}
		return New(name, kind, cfg, env.Executor)
	}
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	switch c.kind {
	case Health:
		return "Hadoop cluster health"
	case Capacity:
		return fmt.Sprintf("HDFS capacity (warning > %v%%, critical > %v%%)", c.cfg.Warning, c.cfg.Critical)
	case DataNode:
		return "HDFS live DataNodes"
	}
	return "Hadoop version"
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	switch c.kind {
	case Health:
		return c.health(ctx), nil
	case Capacity:
		return c.capacity(ctx), nil
	case DataNode:
		return c.datanodes(ctx), nil
	}
	return c.version(ctx), nil
}

func (c *Check) run(ctx context.Context, argv ...string) (string, error) {
	return c.exec.Run(ctx, argv, c.cfg.Timeout)
}

func (c *Check) health(ctx context.Context) probe.Result {
	out, err := c.run(ctx, "hadoop", "health", "-json")
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error checking Hadoop health: %v", err)
	}

	// Decoded in document order so metrics and detail follow the command's layout.
	data := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(out), data); err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error decoding JSON from hadoop health command: %v", err)
	}

	status, _ := data.Value("status").(string)
	message, ok := data.Value("message").(string)
	if !ok {
		message = "No message returned"
	}

	var metrics probe.Metrics
	for pair := data.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "status" {
			continue
		}
		if v, ok := probe.Numeric(pair.Value); ok {
			metrics.Set(pair.Key, v)
		}
	}

	detail, _ := json.MarshalIndent(data, "", "  ")
	return probe.NewResult(c.name, healthSeverity(status), "%s", message).
		WithMetrics(metrics).
		WithDetail(string(detail))
}

func healthSeverity(status string) probe.Severity {
	switch strings.ToUpper(status) {
	case "GOOD":
		return probe.SeverityOK
	case "CONCERNING":
		return probe.SeverityWarning
	case "BAD":
		return probe.SeverityCritical
	}
	return probe.SeverityUnknown
}

var (
	usedPercentRE = regexp.MustCompile(`DFS Used%:\s*([\d.]+)\s*%`)
	liveNodesRE   = regexp.MustCompile(`Live datanodes\s*(?:\((\d+)\)\s*:|:\s*(\d+))`)
)

// ParseUsedPercent extracts the cluster-wide "DFS Used%" from a dfsadmin
// report.
func ParseUsedPercent(report string) (float64, bool) {
	m := usedPercentRE.FindStringSubmatch(report)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

// ParseLiveDataNodes extracts the live DataNode count from a dfsadmin report.
// Both "Live datanodes (3):" and "Live datanodes: 3" are understood.
func ParseLiveDataNodes(report string) (int, bool) {
	m := liveNodesRE.FindStringSubmatch(report)
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

func (c *Check) capacity(ctx context.Context) probe.Result {
	out, err := c.run(ctx, "hdfs", "dfsadmin", "-report")
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error checking HDFS capacity: %v", err)
	}

	used, ok := ParseUsedPercent(out)
	if !ok {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Could not determine HDFS capacity")
	}

	metrics := probe.NewMetrics("capacity_used_percent", used)
	var result probe.Result
	switch threshold.Above(used, c.cfg.Warning, c.cfg.Critical) {
	case probe.SeverityCritical:
		result = probe.NewResult(c.name, probe.SeverityCritical, "HDFS capacity is critical: %v%% used", used)
	case probe.SeverityWarning:
		result = probe.NewResult(c.name, probe.SeverityWarning, "HDFS capacity is warning: %v%% used", used)
	default:
		result = probe.NewResult(c.name, probe.SeverityOK, "HDFS capacity: %v%% used", used)
	}
	return result.WithMetrics(metrics)
}

func (c *Check) datanodes(ctx context.Context) probe.Result {
	out, err := c.run(ctx, "hdfs", "dfsadmin", "-report")
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error checking DataNode status: %v", err)
	}

	live, ok := ParseLiveDataNodes(out)
	if !ok {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Could not determine DataNode status")
	}

	metrics := probe.NewMetrics("live_datanodes", live)
	if live == 0 {
		return probe.NewResult(c.name, probe.SeverityCritical, "No live DataNodes found").WithMetrics(metrics)
	}
	return probe.NewResult(c.name, probe.SeverityOK, "%d live DataNodes found", live).WithMetrics(metrics)
}

func (c *Check) version(ctx context.Context) probe.Result {
	out, err := c.run(ctx, "hadoop", "version")
	if err != nil {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Error fetching Hadoop version: %v", err)
	}

	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Fields(first)
	if len(fields) < 2 {
		return probe.NewResult(c.name, probe.SeverityUnknown, "Could not determine Hadoop version from %q", first)
	}
	return probe.NewResult(c.name, probe.SeverityOK, "Hadoop version: %s", fields[1]).WithDetail(strings.TrimSpace(out))
}
