package report

import (
	"errors"
	"fmt"

	"github.com/jandubois/healthmon/internal/probe"
)

// ErrUnknownFormat is returned by Format for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "prometheus"}

// Format renders results in the named format.
func Format(kind string, results []probe.Result, summary Summary) (string, error) {
	switch kind {
	case "text", "":
		return FormatText(results, summary), nil
	case "json":
		return FormatJSON(results, summary), nil
	case "prometheus":
		return FormatPrometheus(results, summary), nil
	}
	return "", fmt.Errorf("%w %q (expected one of %v)", ErrUnknownFormat, kind, Formats)
}
