package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jandubois/healthmon/internal/batch"
	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probetest"
	"github.com/jandubois/healthmon/internal/report"
)

// testServer creates a server over checks with the given auth token.
func testServer(t *testing.T, token string, checks ...probe.Check) *Server {
	t.Helper()
	b, err := batch.New(checks, batch.Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}
	cfg := &config.ServeConfig{
		Port:      0, // Not used in tests
		AuthToken: token,
		CacheTTL:  config.Duration{Duration: time.Minute},
	}
	return NewServer(b, cfg, nil)
}

func get(t *testing.T, s *Server, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, "secret", probetest.Returning("a", probe.SeverityOK, "fine"))

	w := get(t, s, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestHandleListChecks(t *testing.T) {
	s := testServer(t, "",
		probetest.Returning("a", probe.SeverityOK, "fine"),
		probetest.Returning("b", probe.SeverityOK, "fine"))

	w := get(t, s, "/api/checks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var checks []checkInfo
	if err := json.NewDecoder(w.Body).Decode(&checks); err != nil {
		t.Fatal(err)
	}
	if len(checks) != 2 || checks[0].Name != "a" || checks[1].Description != "test check b" {
		t.Errorf("unexpected checks %+v", checks)
	}
}

func TestHandleReport(t *testing.T) {
	tests := []struct {
		name           string
		severity       probe.Severity
		format         string
		expectedStatus int
		contentType    string
	}{
		{"ok json", probe.SeverityOK, "", http.StatusOK, "application/json"},
		{"warning text", probe.SeverityWarning, "text", http.StatusOK, "text/plain; charset=utf-8"},
		{"critical", probe.SeverityCritical, "json", http.StatusServiceUnavailable, "application/json"},
		{"unknown prometheus", probe.SeverityUnknown, "prometheus", http.StatusServiceUnavailable, "text/plain; version=0.0.4; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, "", probetest.Returning("only", tt.severity, "msg"))
			path := "/api/report"
			if tt.format != "" {
				path += "?format=" + tt.format
			}
			w := get(t, s, path, "")
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, ct)
			}
		})
	}
}

func TestHandleReportJSON(t *testing.T) {
	s := testServer(t, "",
		probetest.Returning("a", probe.SeverityOK, "fine"),
		probetest.Returning("b", probe.SeverityWarning, "meh"))

	w := get(t, s, "/api/report?format=json", "")
	results, summary, err := report.ParseJSON(w.Body.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].CheckName != "a" {
		t.Errorf("unexpected results %+v", results)
	}
	if summary.Overall != probe.SeverityWarning {
		t.Errorf("expected WARNING overall, got %s", summary.Overall)
	}
}

func TestHandleReportBadFormat(t *testing.T) {
	s := testServer(t, "", probetest.Returning("a", probe.SeverityOK, "fine"))
	w := get(t, s, "/api/report?format=xml", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	s := testServer(t, "", probetest.Returning("a", probe.SeverityCritical, "down"))
	w := get(t, s, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `healthmon_check_severity{check="a"} 2`) {
		t.Errorf("unexpected metrics body:\n%s", w.Body.String())
	}
}

func TestReportCache(t *testing.T) {
	var runs atomic.Int32
	counting := &probetest.Check{
		CheckName: "counting",
		Fn: func(ctx context.Context) (probe.Result, error) {
			runs.Add(1)
			return probe.NewResult("counting", probe.SeverityOK, "fine"), nil
		},
	}
	s := testServer(t, "", counting)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	get(t, s, "/api/report", "")
	get(t, s, "/metrics", "")
	if n := runs.Load(); n != 1 {
		t.Errorf("expected 1 run within the TTL, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	get(t, s, "/api/report", "")
	if n := runs.Load(); n != 2 {
		t.Errorf("expected a fresh run after the TTL, got %d runs", n)
	}
}

func TestRequireAuth(t *testing.T) {
	s := testServer(t, "secret-token", probetest.Returning("a", probe.SeverityOK, "fine"))

	handler := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "no auth header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong token",
			authHeader:     "Bearer wrong-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "correct token",
			authHeader:     "Bearer secret-token",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	s := testServer(t, "secret", probetest.Returning("a", probe.SeverityOK, "fine"))
	for _, path := range []string{"/api/checks", "/api/report", "/metrics"} {
		if w := get(t, s, path, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
		if w := get(t, s, path, "secret"); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 with token, got %d", path, w.Code)
		}
	}
}
