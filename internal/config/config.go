// Package config loads the YAML batch file describing which checks to run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jandubois/healthmon/internal/probe"
)

// Defaults for fields the file leaves unset.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 60 * time.Second
	DefaultOutput      = "text"
	DefaultPort        = 8080
	DefaultCacheTTL    = 30 * time.Second
)

var (
	ErrNoChecks      = errors.New("no enabled checks configured")
	ErrDuplicateName = errors.New("duplicate check name")
)

// Duration wraps time.Duration to allow YAML unmarshalling from strings.
// Bare numbers are seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %s", value.ShortTag())
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		d.Duration = time.Duration(seconds * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// CheckConfig is one configured check.
type CheckConfig struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Args     map[string]any `yaml:"args,omitempty"`
	Disabled bool           `yaml:"disabled,omitempty"`
}

// ServeConfig holds settings for the HTTP report server.
type ServeConfig struct {
	Port      int      `yaml:"port,omitempty"`
	AuthToken string   `yaml:"auth_token,omitempty"`
	CacheTTL  Duration `yaml:"cache_ttl,omitempty"`
}

// Config is the root of the batch file.
type Config struct {
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     Duration      `yaml:"timeout,omitempty"`
	Deadline    Duration      `yaml:"deadline,omitempty"`
	Output      string        `yaml:"output,omitempty"`
	Serve       ServeConfig   `yaml:"serve,omitempty"`
	Checks      []CheckConfig `yaml:"checks"`
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout.Duration == 0 {
		c.Timeout.Duration = DefaultTimeout
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
	if c.Serve.CacheTTL.Duration == 0 {
		c.Serve.CacheTTL.Duration = DefaultCacheTTL
	}
	for i := range c.Checks {
		if c.Checks[i].Name == "" {
			c.Checks[i].Name = c.Checks[i].Type
		}
	}
}

// Validate checks the structural rules: every check has a type and a name
// that is not reserved, enabled check names are unique, and at least one
// check is enabled.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Timeout.Duration < 0 || c.Deadline.Duration < 0 {
		return errors.New("timeout and deadline must not be negative")
	}
	seen := map[string]bool{}
	for i, check := range c.Checks {
		if check.Type == "" {
			return fmt.Errorf("checks[%d]: type is required", i)
		}
		if err := probe.ValidateName(check.Name); err != nil {
			return fmt.Errorf("checks[%d]: %w", i, err)
		}
		if check.Disabled {
			continue
		}
		if seen[check.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, check.Name)
		}
		seen[check.Name] = true
	}
	if len(seen) == 0 {
		return ErrNoChecks
	}
	return nil
}

// Enabled returns the checks that are not disabled, in file order.
func (c *Config) Enabled() []CheckConfig {
	var out []CheckConfig
	for _, check := range c.Checks {
		if !check.Disabled {
			out = append(out, check)
		}
	}
	return out
}
