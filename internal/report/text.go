package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jandubois/healthmon/internal/probe"
)

// FormatText renders the human readable report:
//
//	OVERALL STATUS: CRITICAL
//	SUMMARY: 1 OK, 1 CRITICAL
//
//	[hdfs] CRITICAL - HDFS capacity at 96% | capacity_used_percent=96
func FormatText(results []probe.Result, summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OVERALL STATUS: %s\n", summary.Overall)
	fmt.Fprintf(&b, "SUMMARY: %s\n", summary.Text)
	b.WriteString("\n")

	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s - %s", r.CheckName, r.Severity, r.Message)
		if r.Metrics.Len() > 0 {
			b.WriteString(" |")
			r.Metrics.Each(func(name string, value float64) {
				fmt.Fprintf(&b, " %s=%s", name, FormatNumber(value))
			})
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatNumber writes v in its shortest decimal form: 10, 96.5.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
