package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/report"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks := s.batch.Checks()
	out := make([]checkInfo, len(checks))
	for i, c := range checks {
		out[i] = checkInfo{Name: c.Name(), Description: c.Description()}
	}
	writeJSON(w, http.StatusOK, out)
}

var contentTypes = map[string]string{
	"text":       "text/plain; charset=utf-8",
	"json":       "application/json",
	"prometheus": "text/plain; version=0.0.4; charset=utf-8",
}

// handleReport answers 200 while the overall severity is OK or WARNING and
// 503 otherwise, so load balancers and uptime monitors can use it directly.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if _, ok := contentTypes[format]; !ok {
		http.Error(w, "unknown format "+format, http.StatusBadRequest)
		return
	}

	rep, err := s.report(r.Context())
	if err != nil {
		s.logger.Error("running checks", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body, err := rep.Format(format)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, report.ErrUnknownFormat) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	status := http.StatusOK
	if rep.Summary.Overall != probe.SeverityOK && rep.Summary.Overall != probe.SeverityWarning {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rep, err := s.report(r.Context())
	if err != nil {
		s.logger.Error("running checks", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypes["prometheus"])
	w.Write([]byte(report.FormatPrometheus(rep.Results, rep.Summary)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
