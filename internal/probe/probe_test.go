package probe

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrder(t *testing.T) {
	assert.Less(t, SeverityOK, SeverityWarning)
	assert.Less(t, SeverityWarning, SeverityCritical)
	assert.Less(t, SeverityCritical, SeverityUnknown)
	assert.Equal(t, SeverityUnknown, SeverityCritical.Worse(SeverityUnknown))
	assert.Equal(t, SeverityWarning, SeverityWarning.Worse(SeverityOK))

	for i, s := range Severities() {
		assert.Equal(t, i, s.ExitCode())
	}
	assert.Equal(t, 3, Severity(9).ExitCode())
}

func TestSeverityText(t *testing.T) {
	tests := []struct {
		input    string
		expected Severity
	}{
		{"OK", SeverityOK},
		{"warning", SeverityWarning},
		{"WARN", SeverityWarning},
		{"crit", SeverityCritical},
		{" Unknown ", SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseSeverity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}

	_, err := ParseSeverity("fine")
	assert.Error(t, err)

	out, err := json.Marshal(SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, `"CRITICAL"`, string(out))

	_, err = json.Marshal(Severity(-1))
	assert.Error(t, err)
}

func TestMetricsOrder(t *testing.T) {
	m := NewMetrics("b", 1, "a", 2.5, "c", true)
	m.Set("b", 7)

	assert.Equal(t, []string{"b", "a", "c"}, m.Names())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)
	v, _ = m.Get("c")
	assert.Equal(t, float64(1), v)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"b":7,"a":2.5,"c":1}`, string(out))
}

func TestMetricsZeroValue(t *testing.T) {
	var m Metrics
	assert.Equal(t, 0, m.Len())
	_, ok := m.Get("x")
	assert.False(t, ok)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestMetricsJSONRoundTrip(t *testing.T) {
	m := NewMetrics("z", 1, "nan", math.NaN(), "a", 1e-3)
	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"nan":null,"a":0.001}`, string(out))

	var back Metrics
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []string{"z", "nan", "a"}, back.Names())
	v, _ := back.Get("nan")
	assert.True(t, math.IsNaN(v))
}

func TestNewMetricsPanicsOnBadInput(t *testing.T) {
	assert.Panics(t, func() { NewMetrics("a") })
	assert.Panics(t, func() { NewMetrics(1, 2) })
	assert.Panics(t, func() { NewMetrics("a", "b") })
}

func TestResultJSON(t *testing.T) {
	r := NewResult("hdfs", SeverityWarning, "at %d%%", 91).WithMetrics(NewMetrics("used", 91))
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"check":"hdfs","severity":"WARNING","message":"at 91%","metrics":{"used":91}}`, string(out))

	f := Failed("x", "boom")
	assert.Equal(t, SeverityUnknown, f.Severity)
	assert.Equal(t, "Check failed: boom", f.Message)
}

func TestDecodeArgs(t *testing.T) {
	var cfg struct {
		URL        string        `mapstructure:"url"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Interval   time.Duration `mapstructure:"interval"`
		Delay      time.Duration `mapstructure:"delay"`
		Components []string      `mapstructure:"components"`
		Warning    float64       `mapstructure:"warning"`
		Verbose    bool          `mapstructure:"verbose"`
	}
	err := DecodeArgs(map[string]any{
		"url":        "http://x",
		"timeout":    "15s",
		"interval":   2,
		"delay":      "0.5",
		"components": "a, b,c",
		"warning":    "90",
		"verbose":    "true",
	}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "http://x", cfg.URL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Delay)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Components)
	assert.Equal(t, float64(90), cfg.Warning)
	assert.True(t, cfg.Verbose)
}

func TestDecodeArgsRejectsUnknownKeys(t *testing.T) {
	var cfg struct {
		URL string `mapstructure:"url"`
	}
	err := DecodeArgs(map[string]any{"uri": "x"}, &cfg)
	assert.ErrorContains(t, err, "uri")
}

func TestWithMetricsCopies(t *testing.T) {
	m := NewMetrics("count", 1)
	r := NewResult("procs", SeverityOK, "1 process").WithMetrics(m)
	m.Set("count", 5)
	m.Set("extra", 1)

	v, _ := r.Metrics.Get("count")
	assert.Equal(t, float64(1), v)
	assert.Equal(t, []string{"count"}, r.Metrics.Names())

	c := r.Metrics.Clone()
	c.Set("count", 9)
	v, _ = r.Metrics.Get("count")
	assert.Equal(t, float64(1), v)
}
