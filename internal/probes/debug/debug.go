// Package debug provides a check with scripted behavior, used to exercise
// the runner's failure isolation.
package debug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jandubois/healthmon/internal/probe"
)

// Name is the check type name.
const Name = "debug"

// Modes lists the supported behaviors.
var Modes = []string{"ok", "warning", "critical", "error", "timeout", "crash", "fail"}

// ErrSimulated is returned in fail mode.
var ErrSimulated = errors.New("debug check simulated failure")

// GetDescription returns the check type description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        Name,
		Description: "Debug check for testing failure modes",
		Version:     "1.1.0",
		Arguments: probe.Arguments{
			Optional: map[string]probe.ArgumentSpec{
				"mode": {
					Type:        "string",
					Description: "Check behavior mode",
					Default:     "ok",
					Enum:        Modes,
				},
				"message": {
					Type:        "string",
					Description: "Custom message to return",
				},
				"delay": {
					Type:        "duration",
					Description: "Delay before responding",
					Default:     "0s",
				},
			},
		},
	}
}

// Config holds the check arguments.
type Config struct {
	Mode    string        `mapstructure:"mode"`
	Message string        `mapstructure:"message"`
	Delay   time.Duration `mapstructure:"delay"`
}

// Check is the debug check.
type Check struct {
	name string
	cfg  Config
}

// New creates a debug check.
func New(name string, cfg Config) (*Check, error) {
	if cfg.Mode == "" {
		cfg.Mode = "ok"
	}
	valid := false
	for _, m := range Modes {
		valid = valid || m == cfg.Mode
	}
	if !valid {
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if name == "" {
		name = Name
	}
	return &Check{name: name, cfg: cfg}, nil
}

// Build creates the check from loosely typed arguments.
func Build(name string, args map[string]any, env probe.Env) (probe.Check, error) {
	var cfg Config
	if err := probe.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg)
}

func (c *Check) Name() string { return c.name }

func (c *Check) Description() string {
	return "Debug check in " + c.cfg.Mode + " mode"
}

// Execute behaves according to the configured mode. In timeout mode it
// blocks until ctx is done.
func (c *Check) Execute(ctx context.Context) (probe.Result, error) {
	if c.cfg.Delay > 0 {
		select {
		case <-time.After(c.cfg.Delay):
		case <-ctx.Done():
			return probe.Result{}, ctx.Err()
		}
	}

	switch c.cfg.Mode {
	case "ok":
		return c.result(probe.SeverityOK, "Debug check completed successfully"), nil
	case "warning":
		return c.result(probe.SeverityWarning, "Debug check simulated warning"), nil
	case "critical":
		return c.result(probe.SeverityCritical, "Debug check simulated critical failure"), nil
	case "error":
		return c.result(probe.SeverityUnknown, "Debug check simulated error"), nil
	case "timeout":
		<-ctx.Done()
		return probe.Result{}, ctx.Err()
	case "crash":
		panic("debug check intentional crash")
	}
	return probe.Result{}, ErrSimulated
}

func (c *Check) result(severity probe.Severity, fallback string) probe.Result {
	msg := c.cfg.Message
	if msg == "" {
		msg = fallback
	}
	return probe.NewResult(c.name, severity, "%s", msg)
}
