package probe

import (
	"errors"
	"fmt"
)

// SummaryName is reserved for the run summary entry of a JSON report.
const SummaryName = "_summary"

// ErrReservedName is returned for a check name that would collide with a
// report entry.
var ErrReservedName = errors.New("reserved check name")

// ValidateName rejects names no check may carry.
func ValidateName(name string) error {
	if name == SummaryName {
		return fmt.Errorf("%w %q", ErrReservedName, name)
	}
	return nil
}
