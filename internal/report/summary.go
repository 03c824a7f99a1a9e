// Package report aggregates check results and renders them as text, JSON or
// Prometheus exposition format.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jandubois/healthmon/internal/probe"
)

// ErrNoChecks is returned when there is nothing to summarize.
var ErrNoChecks = errors.New("no checks configured")

// Counts tallies results per severity.
type Counts [4]int

// Get returns the count for s.
func (c Counts) Get(s probe.Severity) int {
	if !s.Valid() {
		return 0
	}
	return c[s]
}

// MarshalJSON writes every severity, in severity order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range probe.Severities() {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%d", s.String(), c[s])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Counts) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Counts{}
	for name, n := range raw {
		s, err := probe.ParseSeverity(name)
		if err != nil {
			return err
		}
		c[s] = n
	}
	return nil
}

// Summary is the aggregate view of one batch.
type Summary struct {
	Overall probe.Severity `json:"overall_severity"`
	Counts  Counts         `json:"counts_by_severity"`
	Total   int            `json:"total_checks"`
	Text    string         `json:"summary_text"`
}

// Summarize computes the overall severity (the most severe result), the per
// severity counts and the summary line. The input order does not matter.
func Summarize(results []probe.Result) (Summary, error) {
	if len(results) == 0 {
		return Summary{}, ErrNoChecks
	}

	var s Summary
	for _, r := range results {
		sev := r.Severity
		if !sev.Valid() {
			sev = probe.SeverityUnknown
		}
		s.Counts[sev]++
		s.Overall = s.Overall.Worse(sev)
	}
	s.Total = len(results)

	var parts []string
	for _, sev := range probe.Severities() {
		if n := s.Counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	s.Text = strings.Join(parts, ", ")
	return s, nil
}

// Arrange orders results to follow order, a list of check names. Results
// whose name is not listed keep their relative order at the end.
func Arrange(results []probe.Result, order []string) []probe.Result {
	byName := orderedmap.New[string, []probe.Result]()
	for _, r := range results {
		existing, _ := byName.Get(r.CheckName)
		byName.Set(r.CheckName, append(existing, r))
	}

	out := make([]probe.Result, 0, len(results))
	for _, name := range order {
		if rs, ok := byName.Get(name); ok {
			out = append(out, rs...)
			byName.Delete(name)
		}
	}
	for pair := byName.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value...)
	}
	return out
}
