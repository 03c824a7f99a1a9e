// Package threshold implements Nagios-style threshold ranges and the
// monotonic warning/critical rule used by capacity checks.
package threshold

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jandubois/healthmon/internal/probe"
)

// Range is a Nagios threshold range. The zero Range never alerts.
//
//	10      alert if value > 10
//	10:     alert if value < 10
//	~:10    alert if value > 10
//	10:20   alert if value < 10 or value > 20
//	@10:20  alert if 10 <= value <= 20
type Range struct {
	Min, Max float64
	Inside   bool
	raw      string
}

// Parse parses a Nagios range expression.
func Parse(s string) (Range, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Range{}, nil
	}
	r := Range{Min: math.Inf(-1), Max: math.Inf(1), raw: raw}
	spec := raw
	if strings.HasPrefix(spec, "@") {
		r.Inside = true
		spec = spec[1:]
	}

	lo, hi, hasColon := strings.Cut(spec, ":")
	if !hasColon {
		max, err := parseBound(lo)
		if err != nil {
			return Range{}, fmt.Errorf("invalid threshold %q: %w", raw, err)
		}
		r.Max = max
		return r, nil
	}

	if lo != "~" && lo != "" {
		min, err := parseBound(lo)
		if err != nil {
			return Range{}, fmt.Errorf("invalid threshold %q: %w", raw, err)
		}
		r.Min = min
	}
	if hi != "" {
		max, err := parseBound(hi)
		if err != nil {
			return Range{}, fmt.Errorf("invalid threshold %q: %w", raw, err)
		}
		r.Max = max
	}
	if r.Min > r.Max {
		return Range{}, fmt.Errorf("invalid threshold %q: start is greater than end", raw)
	}
	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Range {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.raw == ""
}

// Alerts reports whether value breaches the range.
func (r Range) Alerts(value float64) bool {
	if r.IsZero() {
		return false
	}
	inside := value >= r.Min && value <= r.Max
	if r.Inside {
		return inside
	}
	return !inside
}

func (r Range) String() string {
	return r.raw
}

func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.raw), nil
}

func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Evaluate maps value onto a severity. The critical range is checked first,
// so a value breaching both ranges is CRITICAL.
func Evaluate(value float64, warning, critical Range) probe.Severity {
	switch {
	case critical.Alerts(value):
		return probe.SeverityCritical
	case warning.Alerts(value):
		return probe.SeverityWarning
	}
	return probe.SeverityOK
}

// Above applies the monotonic rule: strictly above critical is CRITICAL,
// otherwise strictly above warning is WARNING.
func Above(value, warning, critical float64) probe.Severity {
	switch {
	case value > critical:
		return probe.SeverityCritical
	case value > warning:
		return probe.SeverityWarning
	}
	return probe.SeverityOK
}
