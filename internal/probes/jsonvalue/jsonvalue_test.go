package jsonvalue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probetest"
)

const docURL = "http://queue.example.com/stats"

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestJSONValue(t *testing.T) {
	doc := `{"queue": {"depth": 42, "state": "running", "workers": [{"id": 1}, {"id": 2}]}, "lag": "7.5"}`

	tests := []struct {
		name     string
		args     map[string]any
		expected probe.Severity
		message  string
	}{
		{"ok range", map[string]any{"path": "$.queue.depth", "warning": 50, "critical": 100}, probe.SeverityOK, "$.queue.depth is 42"},
		{"warning", map[string]any{"path": "$.queue.depth", "warning": 40, "critical": 100}, probe.SeverityWarning, "$.queue.depth is 42 (warning: 40)"},
		{"critical first", map[string]any{"path": "$.queue.depth", "warning": 10, "critical": 20}, probe.SeverityCritical, "$.queue.depth is 42 (critical: 20)"},
		{"numeric string", map[string]any{"path": "$.lag", "warning": "5"}, probe.SeverityWarning, "$.lag is 7.5 (warning: 5)"},
		{"expect match", map[string]any{"path": "$.queue.state", "expect": "running"}, probe.SeverityOK, `$.queue.state is "running"`},
		{"expect mismatch", map[string]any{"path": "$.queue.state", "expect": "stopped"}, probe.SeverityCritical, `$.queue.state is "running", expected "stopped"`},
		{"expect number", map[string]any{"path": "$.queue.depth", "expect": 42}, probe.SeverityOK, `$.queue.depth is "42"`},
		{"array index", map[string]any{"path": "$.queue.workers[1].id", "critical": "@2:2"}, probe.SeverityCritical, "$.queue.workers[1].id is 2 (critical: @2:2)"},
		{"not numeric", map[string]any{"path": "$.queue.state", "warning": 1}, probe.SeverityUnknown, "$.queue.state is not numeric: running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["url"] = docURL
			check, err := Build("queue", tt.args, probe.Env{Fetcher: &probetest.Fetcher{Docs: map[string]any{docURL: decode(t, doc)}}})
			if err != nil {
				t.Fatal(err)
			}
			result, _ := check.Execute(context.Background())
			if result.Severity != tt.expected {
				t.Errorf("expected %s, got %s: %s", tt.expected, result.Severity, result.Message)
			}
			if result.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, result.Message)
			}
		})
	}
}

func TestMissingPath(t *testing.T) {
	f := &probetest.Fetcher{Docs: map[string]any{docURL: decode(t, `{"a": 1}`)}}
	c, err := New("", Config{URL: docURL, Path: "$.b.c"}, f)
	if err != nil {
		t.Fatal(err)
	}
	result, _ := c.Execute(context.Background())
	if result.Severity != probe.SeverityUnknown || !strings.HasPrefix(result.Message, "$.b.c not found") {
		t.Errorf("unexpected result %s %q", result.Severity, result.Message)
	}
}

func TestFetchFailure(t *testing.T) {
	c, _ := New("", Config{URL: docURL, Path: "$.a"}, &probetest.Fetcher{})
	result, _ := c.Execute(context.Background())
	if result.Severity != probe.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", result.Severity)
	}
}

func TestPathValidation(t *testing.T) {
	if _, err := New("", Config{URL: docURL, Path: "queue.depth"}, nil); err == nil {
		t.Error("expected error for path without $")
	}
}
