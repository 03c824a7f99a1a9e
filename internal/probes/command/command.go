// Package command provides the command check: run a shell command and map
// its exit code onto a severity.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jandubois/healthmon/internal/executor"
	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "command"

const maxOutputLen = 10000

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Run a command and check its exit code",
		Version:     "1.1.0",
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"command": {
					Type:        "string",
					Description: "Command to run",
				},
			},
			Optional: probe.WithRemoteArguments(map[string]probe.ArgumentSpec{
				"shell": {
					Type:        "string",
					Description: "Shell to use for execution",
					Default:     "/bin/sh",
				},
				"ok_codes": {
					Type:        "string",
					Description: "Comma-separated exit codes that indicate success",
					Default:     "0",
				},
				"warning_codes": {
					Type:        "string",
					Description: "Comma-separated exit codes that indicate warning",
					Default:     "",
				},
				"capture_output": {
					Type:        "boolean",
					Description: "Include command output in the result detail",
					Default:     true,
				},
				"timeout": {
					Type:        "duration",
					Description: "Command timeout",
				},
			}),
		},
	}
}

// Config holds the check arguments.
type Config struct {
	probe.Remote  `mapstructure:",squash"`
	Command       string        `mapstructure:"command"`
	Shell         string        `mapstructure:"shell"`
	OKCodes       string        `mapstructure:"ok_codes"`
	WarningCodes  string        `mapstructure:"warning_codes"`
	CaptureOutput bool          `mapstructure:"capture_output"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Shell: "/bin/sh", OKCodes: "0", CaptureOutput: true}
}

// Check is the command check.
type Check struct {
	name         string
	cfg          Config
	okCodes      map[int]bool
	warningCodes map[int]bool
	exec         executor.Executor
	now          func() time.Time
}

// New creates a command check.
func New(name string, cfg Config, exec executor.Executor) (*Check, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command argument is required")
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if name == "" {
		name = Name
	}
	return &Check{
		name:         name,
		cfg:          cfg,
		okCodes:      parseCodeSet(cfg.OKCodes),
		warningCodes: parseCodeSet(cfg.WarningCodes),
		exec:         cfg.Remote.Executor(exec),
		now:          time.Now,
	}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	cfg := DefaultConfig()
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, env.Executor)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return c.cfg.Command
}

func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	start := c.now()
	stdout, err := c.exec.Run(ctx, []string{c.cfg.Shell, "-c", c.cfg.Command}, c.cfg.Timeout)
	duration := c.now().Sub(start)

	exitCode := 0
	var stderr string
	if err != nil {
		f, ok := executor.AsFailure(err)
		if !ok || f.Kind != executor.NonZeroExit {
			return probe.NewResult(c.name, probe.SeverityUnknown, "failed to run command: %v", err), nil
		}
		exitCode = f.ExitCode
		stdout = f.Output
		stderr = f.Detail
	}

	severity := probe.SeverityCritical
	if c.okCodes[exitCode] {
		severity = probe.SeverityOK
	} else if c.warningCodes[exitCode] {
		severity = probe.SeverityWarning
	}

	message := fmt.Sprintf("Command exited with code %d", exitCode)
	if severity == probe.SeverityOK {
		message = "Command completed successfully"
	}

	result := probe.NewResult(c.name, severity, "%s", message).WithMetrics(probe.NewMetrics(
		"exit_code", float64(exitCode),
		"duration_ms", float64(duration.Milliseconds()),
	))
	if c.cfg.CaptureOutput {
		result = result.WithDetail(captured(stdout, stderr))
	}
	return result, nil
}

func captured(stdout, stderr string) string {
	var b strings.Builder
	if s := strings.TrimRight(stdout, "\n"); s != "" {
		b.WriteString(executor.Truncate(s, maxOutputLen))
	}
	if s := strings.TrimRight(stderr, "\n"); s != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("stderr: ")
		b.WriteString(executor.Truncate(s, maxOutputLen))
	}
	return b.String()
}

func parseCodeSet(codes string) map[int]bool {
	set := make(map[int]bool)
	if codes == "" {
		return set
	}
	for _, part := range strings.Split(codes, ",") {
		var code int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &code); err == nil {
			set[code] = true
		}
	}
	return set
}
