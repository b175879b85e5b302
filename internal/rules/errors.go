package rules

import (
	"errors"
	"strings"
)

var (
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid rule configuration")

	// ErrTimeout is wrapped in a file error when a file exceeds its time budget.
	ErrTimeout = errors.New("file time budget exceeded")
)

// ConfigError reports a malformed rule. It is fatal for the run and is raised
// before any file is checked.
type ConfigError struct {
	Source string // rule pack path, empty for in-memory rules
	RuleID string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.RuleID != "" {
		b.WriteString("rule ")
		b.WriteString(`"` + e.RuleID + `"`)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }
