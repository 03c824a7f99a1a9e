package report

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jandubois/healthmon/internal/probe"
)

// SummaryKey is the reserved key holding the Summary in the JSON report.
const SummaryKey = probe.SummaryName

type jsonEntry struct {
	Severity probe.Severity `json:"severity"`
	Message  string         `json:"message"`
	Metrics  probe.Metrics  `json:"metrics"`
	Detail   string         `json:"detail,omitempty"`
}

// FormatJSON renders an object keyed by check name, in result order, plus
// the summary under SummaryKey. A result whose name is already taken, by an
// earlier result or by SummaryKey, is keyed "<name>#2", "<name>#3" and so on,
// so every result appears in the document.
func FormatJSON(results []probe.Result, summary Summary) string {
	doc := orderedmap.New[string, any]()
	for _, r := range results {
		doc.Set(entryKey(doc, r.CheckName), jsonEntry{
			Severity: validSeverity(r.Severity),
			Message:  r.Message,
			Metrics:  r.Metrics,
			Detail:   r.Detail,
		})
	}
	summary.Overall = validSeverity(summary.Overall)
	doc.Set(SummaryKey, summary)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		// Every value above has a total encoding.
		panic(fmt.Sprintf("report: encoding JSON: %v", err))
	}
	return string(out)
}

func entryKey(doc *orderedmap.OrderedMap[string, any], name string) string {
	key := name
	for n := 2; ; n++ {
		if _, taken := doc.Get(key); !taken && key != SummaryKey {
			return key
		}
		key = fmt.Sprintf("%s#%d", name, n)
	}
}

// ParseJSON reads a report written by FormatJSON.
func ParseJSON(data string) ([]probe.Result, Summary, error) {
	doc := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, Summary{}, fmt.Errorf("decoding report: %w", err)
	}

	var (
		results []probe.Result
		summary Summary
		found   bool
	)
	for pair := doc.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == SummaryKey {
			if err := json.Unmarshal(pair.Value, &summary); err != nil {
				return nil, Summary{}, fmt.Errorf("decoding summary: %w", err)
			}
			found = true
			continue
		}
		var entry jsonEntry
		if err := json.Unmarshal(pair.Value, &entry); err != nil {
			return nil, Summary{}, fmt.Errorf("decoding result %q: %w", pair.Key, err)
		}
		results = append(results, probe.Result{
			CheckName: pair.Key,
			Severity:  entry.Severity,
			Message:   entry.Message,
			Metrics:   entry.Metrics,
			Detail:    entry.Detail,
		})
	}
	if !found {
		return nil, Summary{}, fmt.Errorf("report has no %s entry", SummaryKey)
	}
	return results, summary, nil
}

func validSeverity(s probe.Severity) probe.Severity {
	if !s.Valid() {
		return probe.SeverityUnknown
	}
	return s
}
