package report

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/healthmon/internal/probe"
)

func scenario() []probe.Result {
	return []probe.Result{
		probe.NewResult("A", probe.SeverityOK, "all good").WithMetrics(probe.NewMetrics("nodes", 10)),
		probe.NewResult("B", probe.SeverityCritical, "no live nodes"),
		probe.Failed("C", "panic: boom"),
	}
}

func TestSummarizeScenario(t *testing.T) {
	s, err := Summarize(scenario())
	require.NoError(t, err)

	assert.Equal(t, probe.SeverityUnknown, s.Overall)
	assert.Equal(t, 3, s.Overall.ExitCode())
	assert.Equal(t, Counts{1, 0, 1, 1}, s.Counts)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, "1 OK, 1 CRITICAL, 1 UNKNOWN", s.Text)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoChecks)
}

func TestSummarizeOverallIsMax(t *testing.T) {
	tests := []struct {
		name     string
		input    []probe.Severity
		expected probe.Severity
		text     string
	}{
		{"all ok", []probe.Severity{0, 0, 0}, probe.SeverityOK, "3 OK"},
		{"warning", []probe.Severity{0, 1, 0, 0}, probe.SeverityWarning, "3 OK, 1 WARNING"},
		{"critical beats warning", []probe.Severity{1, 2, 1}, probe.SeverityCritical, "2 WARNING, 1 CRITICAL"},
		{"unknown beats critical", []probe.Severity{2, 3}, probe.SeverityUnknown, "1 CRITICAL, 1 UNKNOWN"},
		{"invalid counts as unknown", []probe.Severity{0, 7}, probe.SeverityUnknown, "1 OK, 1 UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []probe.Result
			for _, sev := range tt.input {
				results = append(results, probe.Result{Severity: sev})
			}
			s, err := Summarize(results)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Overall)
			assert.Equal(t, tt.text, s.Text)

			sum := 0
			for _, n := range s.Counts {
				sum += n
			}
			assert.Equal(t, len(results), sum)
			assert.Equal(t, len(results), s.Total)
		})
	}
}

func TestSummarizeOrderIndependent(t *testing.T) {
	results := scenario()
	first, _ := Summarize(results)
	reversed := []probe.Result{results[2], results[1], results[0]}
	second, _ := Summarize(reversed)
	assert.Equal(t, first, second)
}

func TestFormatText(t *testing.T) {
	results := scenario()
	s, _ := Summarize(results)

	expected := strings.Join([]string{
		"OVERALL STATUS: UNKNOWN",
		"SUMMARY: 1 OK, 1 CRITICAL, 1 UNKNOWN",
		"",
		"[A] OK - all good | nodes=10",
		"[B] CRITICAL - no live nodes",
		"[C] UNKNOWN - Check failed: panic: boom",
		"",
	}, "\n")
	assert.Equal(t, expected, FormatText(results, s))
}

func TestFormatTextMetrics(t *testing.T) {
	r := probe.NewResult("hdfs", probe.SeverityCritical, "HDFS capacity at %.1f%%", 96.5).
		WithMetrics(probe.NewMetrics("capacity_used_percent", 96.5, "live", 3))
	s, _ := Summarize([]probe.Result{r})
	assert.Contains(t, FormatText([]probe.Result{r}, s), "[hdfs] CRITICAL - HDFS capacity at 96.5% | capacity_used_percent=96.5 live=3\n")
}

func TestFormatJSONRoundTrip(t *testing.T) {
	results := scenario()
	results[1] = results[1].WithDetail("dfsadmin output")
	s, _ := Summarize(results)

	out := FormatJSON(results, s)
	require.True(t, json.Valid([]byte(out)))

	parsed, summary, err := ParseJSON(out)
	require.NoError(t, err)
	assert.Equal(t, s, summary)
	require.Len(t, parsed, 3)
	for i := range results {
		assert.Equal(t, results[i].CheckName, parsed[i].CheckName)
		assert.Equal(t, results[i].Severity, parsed[i].Severity)
		assert.Equal(t, results[i].Message, parsed[i].Message)
		assert.Equal(t, results[i].Detail, parsed[i].Detail)
		assert.Equal(t, results[i].Metrics.Names(), parsed[i].Metrics.Names())
	}
	nodes, ok := parsed[0].Metrics.Get("nodes")
	assert.True(t, ok)
	assert.Equal(t, float64(10), nodes)
}

func TestFormatJSONShape(t *testing.T) {
	results := scenario()
	s, _ := Summarize(results)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(FormatJSON(results, s)), &doc))

	assert.Equal(t, "OK", doc["A"]["severity"])
	assert.Equal(t, map[string]any{"nodes": float64(10)}, doc["A"]["metrics"])
	assert.NotContains(t, doc["B"], "detail")
	assert.Equal(t, "UNKNOWN", doc[SummaryKey]["overall_severity"])
	assert.Equal(t, float64(3), doc[SummaryKey]["total_checks"])
	assert.Equal(t, map[string]any{"OK": float64(1), "WARNING": float64(0), "CRITICAL": float64(1), "UNKNOWN": float64(1)},
		doc[SummaryKey]["counts_by_severity"])

	out := FormatJSON(results, s)
	assert.Less(t, strings.Index(out, `"A"`), strings.Index(out, `"B"`))
	assert.Less(t, strings.Index(out, `"B"`), strings.Index(out, SummaryKey))
}

func TestFormatJSONNonFiniteMetrics(t *testing.T) {
	r := probe.NewResult("x", probe.SeverityOK, "ok").WithMetrics(probe.NewMetrics("nan", math.NaN(), "inf", math.Inf(1)))
	s, _ := Summarize([]probe.Result{r})

	out := FormatJSON([]probe.Result{r}, s)
	require.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, `"nan": null`)
}

func TestFormatPrometheus(t *testing.T) {
	results := scenario()
	s, _ := Summarize(results)
	out := FormatPrometheus(results, s)

	assert.Contains(t, out, "# TYPE healthmon_overall_severity gauge\nhealthmon_overall_severity 3\n")
	assert.Contains(t, out, `healthmon_checks{severity="CRITICAL"} 1`)
	assert.Contains(t, out, `healthmon_check_severity{check="B"} 2`)
	assert.Contains(t, out, `healthmon_check_metric{check="A",metric="nodes"} 10`)
}

func TestFormat(t *testing.T) {
	results := scenario()
	s, _ := Summarize(results)

	for _, kind := range Formats {
		out, err := Format(kind, results, s)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, out)
	}
	_, err := Format("xml", results, s)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestArrange(t *testing.T) {
	results := []probe.Result{
		{CheckName: "c"}, {CheckName: "extra"}, {CheckName: "a"}, {CheckName: "b"},
	}
	arranged := Arrange(results, []string{"a", "b", "c", "missing"})

	var names []string
	for _, r := range arranged {
		names = append(names, r.CheckName)
	}
	assert.Equal(t, []string{"a", "b", "c", "extra"}, names)
}

func TestFormatJSONKeepsCollidingNames(t *testing.T) {
	results := []probe.Result{
		probe.NewResult(SummaryKey, probe.SeverityCritical, "down"),
		probe.NewResult("web", probe.SeverityOK, "up"),
		probe.NewResult("web", probe.SeverityWarning, "slow"),
	}
	s, _ := Summarize(results)

	parsed, summary, err := ParseJSON(FormatJSON(results, s))
	require.NoError(t, err)
	assert.Equal(t, s, summary)
	require.Len(t, parsed, 3)

	var names []string
	for _, r := range parsed {
		names = append(names, r.CheckName)
	}
	assert.Equal(t, []string{SummaryKey + "#2", "web", "web#2"}, names)
	assert.Equal(t, probe.SeverityCritical, parsed[0].Severity)
	assert.Equal(t, "slow", parsed[2].Message)
}
