package report

import (
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/jandubois/healthmon/internal/probe"
)

const metricPrefix = "healthmon_"

// FormatPrometheus renders the report in the Prometheus text exposition
// format, suitable for the node_exporter textfile collector.
func FormatPrometheus(results []probe.Result, summary Summary) string {
	checkSeverity := gaugeFamily("check_severity", "Severity of each check (0=OK, 1=WARNING, 2=CRITICAL, 3=UNKNOWN).")
	checkMetric := gaugeFamily("check_metric", "Metrics reported by each check.")
	for _, r := range results {
		checkSeverity.Metric = append(checkSeverity.Metric, gauge(float64(validSeverity(r.Severity)), "check", r.CheckName))
		r.Metrics.Each(func(name string, value float64) {
			checkMetric.Metric = append(checkMetric.Metric, gauge(value, "check", r.CheckName, "metric", name))
		})
	}

	overall := gaugeFamily("overall_severity", "Most severe check result.")
	overall.Metric = append(overall.Metric, gauge(float64(validSeverity(summary.Overall))))

	counts := gaugeFamily("checks", "Number of checks per severity.")
	for _, sev := range probe.Severities() {
		counts.Metric = append(counts.Metric, gauge(float64(summary.Counts[sev]), "severity", sev.String()))
	}

	var b strings.Builder
	for _, mf := range []*dto.MetricFamily{overall, counts, checkSeverity, checkMetric} {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			// Names are fixed and valid; a failure here is a bug.
			panic(fmt.Sprintf("report: encoding %s: %v", mf.GetName(), err))
		}
	}
	return b.String()
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(metricPrefix + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

// gauge builds a sample; labels alternate name and value.
func gauge(value float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: ptr(value)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{Name: ptr(labels[i]), Value: ptr(labels[i+1])})
	}
	return m
}

func ptr[T any](v T) *T {
	return &v
}
