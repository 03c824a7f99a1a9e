package batch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probetest"
	"github.com/jandubois/healthmon/internal/report"
	"github.com/jandubois/healthmon/internal/runner"
)

func TestRunKeepsConfigurationOrder(t *testing.T) {
	b, err := New([]probe.Check{
		probetest.Returning("a", probe.SeverityOK, "fine"),
		probetest.Panicking("b", "boom"),
		probetest.Returning("c", probe.SeverityWarning, "meh"),
	}, Options{Concurrency: 3})
	require.NoError(t, err)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, rep.Results[i].CheckName)
	}
	assert.Equal(t, probe.SeverityUnknown, rep.Summary.Overall)
	assert.Equal(t, 3, rep.Summary.Total)

	text, err := rep.Format("text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "OVERALL STATUS: UNKNOWN\n"), text)
}

func TestDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	b, err := New([]probe.Check{
		probetest.Hanging("slow", release),
	}, Options{Concurrency: 1, CheckTimeout: time.Minute, Deadline: 20 * time.Millisecond})
	require.NoError(t, err)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, probe.SeverityUnknown, rep.Results[0].Severity)
	assert.Contains(t, rep.Results[0].Message, "batch deadline of 20ms exceeded")
}

func TestEmpty(t *testing.T) {
	b, err := New(nil, Options{Concurrency: 1})
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	assert.ErrorIs(t, err, report.ErrNoChecks)
}

func TestInvalidConcurrency(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, runner.ErrInvalidConcurrency)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
concurrency: 2
checks:
  - name: first
    type: debug
    args: {mode: critical}
  - name: second
    type: debug
  - name: skipped
    type: nope
    disabled: true
`))
	require.NoError(t, err)

	b, err := FromConfig(cfg, probe.Env{}, Options{})
	require.NoError(t, err)
	require.Len(t, b.Checks(), 2)

	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, probe.SeverityCritical, rep.Summary.Overall)
	assert.Equal(t, 1, rep.Summary.Counts.Get(probe.SeverityOK))
}

func TestFromConfigUnknownType(t *testing.T) {
	cfg, err := config.Parse([]byte("checks:\n  - type: nope\n"))
	require.NoError(t, err)
	_, err = FromConfig(cfg, probe.Env{}, Options{})
	assert.Error(t, err)
}
