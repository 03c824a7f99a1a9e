package probe

import "fmt"

// Result is the outcome of one check execution. Results are created once and
// never modified after they are handed to the runner.
type Result struct {
	CheckName string   `json:"check"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Metrics   Metrics  `json:"metrics"`
	Detail    string   `json:"detail,omitempty"`
}

// NewResult returns a result without metrics or detail.
func NewResult(checkName string, severity Severity, format string, args ...any) Result {
	return Result{
		CheckName: checkName,
		Severity:  severity,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Failed is the result synthesized for a check that could not produce one.
func Failed(checkName string, cause any) Result {
	return Result{
		CheckName: checkName,
		Severity:  SeverityUnknown,
		Message:   fmt.Sprintf("Check failed: %v", cause),
	}
}

// WithMetrics returns a copy of r carrying its own copy of m, so later
// changes to m do not reach the result.
func (r Result) WithMetrics(m Metrics) Result {
	r.Metrics = m.Clone()
	return r
}

// WithDetail returns a copy of r carrying detail.
func (r Result) WithDetail(detail string) Result {
	r.Detail = detail
	return r
}
