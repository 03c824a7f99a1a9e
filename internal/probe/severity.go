package probe

import (
	"fmt"
	"strings"
)

// Severity is the outcome class of a check. The integer value doubles as the
// rank used for aggregation and as the Nagios plugin exit code.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

var severityNames = [...]string{"OK", "WARNING", "CRITICAL", "UNKNOWN"}

// Severities lists every severity from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityOK, SeverityWarning, SeverityCritical, SeverityUnknown}
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	return s >= SeverityOK && s <= SeverityUnknown
}

// ExitCode returns the process exit code for s.
func (s Severity) ExitCode() int {
	if !s.Valid() {
		return int(SeverityUnknown)
	}
	return int(s)
}

// Worse returns whichever of s and other ranks higher.
func (s Severity) Worse(other Severity) Severity {
	if other > s {
		return other
	}
	return s
}

// ParseSeverity parses a severity name, ignoring case. "WARN" and "CRIT" are
// accepted as short forms.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "OK":
		return SeverityOK, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "CRITICAL", "CRIT":
		return SeverityCritical, nil
	case "UNKNOWN":
		return SeverityUnknown, nil
	}
	return SeverityUnknown, fmt.Errorf("invalid severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
