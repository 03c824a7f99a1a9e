package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/healthmon/internal/probe"
)

const sample = `
concurrency: 8
timeout: 30s
deadline: 120
output: json
serve:
  port: 9100
  auth_token: secret
checks:
  - name: hdfs
    type: hdfs-capacity
    args:
      warning: 80
      critical: 90
      ssh_host: namenode1
  - type: hadoop-health
  - name: old
    type: debug
    disabled: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Deadline.Duration)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 9100, cfg.Serve.Port)
	assert.Equal(t, "secret", cfg.Serve.AuthToken)
	assert.Equal(t, DefaultCacheTTL, cfg.Serve.CacheTTL.Duration)

	require.Len(t, cfg.Checks, 3)
	assert.Equal(t, "hadoop-health", cfg.Checks[1].Name, "name defaults to type")
	assert.Equal(t, 80, cfg.Checks[0].Args["warning"])
	assert.Equal(t, "namenode1", cfg.Checks[0].Args["ssh_host"])

	enabled := cfg.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "hdfs", enabled[0].Name)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("checks:\n  - type: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultTimeout, cfg.Timeout.Duration)
	assert.Zero(t, cfg.Deadline.Duration)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultPort, cfg.Serve.Port)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		is   error
		msg  string
	}{
		{name: "no checks", yaml: "concurrency: 2\n", is: ErrNoChecks},
		{name: "all disabled", yaml: "checks:\n  - type: debug\n    disabled: true\n", is: ErrNoChecks},
		{name: "duplicate", yaml: "checks:\n  - type: debug\n  - type: debug\n", is: ErrDuplicateName},
		{name: "reserved name", yaml: "checks:\n  - name: _summary\n    type: debug\n  - type: debug\n", is: probe.ErrReservedName},
		{name: "missing type", yaml: "checks:\n  - name: x\n", msg: "checks[0]: type is required"},
		{name: "negative concurrency", yaml: "concurrency: -1\nchecks:\n  - type: debug\n", msg: "concurrency must be positive, got -1"},
		{name: "bad duration", yaml: "timeout: soon\nchecks:\n  - type: debug\n", msg: "invalid duration"},
		{name: "duration mapping", yaml: "timeout: {a: 1}\nchecks:\n  - type: debug\n", msg: "duration must be a scalar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestDuplicateDisabledAllowed(t *testing.T) {
	_, err := Parse([]byte("checks:\n  - type: debug\n  - type: debug\n    disabled: true\n"))
	assert.NoError(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Checks, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
