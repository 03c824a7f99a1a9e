package probe

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the timestamp layout used by the status APIs.
const TimestampLayout = "2006-01-02 15:04:05"

var localLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses a status API timestamp. Zoneless values are read in
// local time; RFC 3339 values keep their zone.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
