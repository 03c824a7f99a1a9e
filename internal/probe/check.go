// Package probe defines the check contract shared by the runner, the report
// formatters and every built-in check type.
package probe

import "context"

// Check is one configured health check.
//
// Execute reports expected failures (connection refused, bad payload,
// threshold breach) as a Result. A returned error or a panic means the check
// itself broke; the runner turns either into an UNKNOWN result.
type Check interface {
	Name() string
	Description() string
	Execute(ctx context.Context) (Result, error)
}

// Description is the self-description format for check types.
type Description struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Arguments   Arguments `json:"arguments"`
}

// Arguments describes required and optional check arguments.
type Arguments struct {
	Required map[string]ArgumentSpec `json:"required,omitempty"`
	Optional map[string]ArgumentSpec `json:"optional,omitempty"`
}

// ArgumentSpec describes a single argument.
type ArgumentSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
