package ir

import (
	"strings"
	"time"
)

const Version = "1.0"

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity accepts the three recognized severities, case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, true
	case SeverityWarning:
		return SeverityWarning, true
	case SeverityInfo:
		return SeverityInfo, true
	}
	return "", false
}

// Rank orders severities: error > warning > info. Unknown ranks 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source,omitempty"`
	IRVersion string    `json:"ir_version,omitempty"`

	Context  Context       `json:"context"`
	Files    []FileStat    `json:"files"`
	Findings []Finding     `json:"findings,omitempty"`
	Errors   []FileFailure `json:"errors,omitempty"`
}

type Context struct {
	RuleSources       []string `json:"rule_sources,omitempty"`
	RuleCount         int      `json:"rule_count"`
	SeverityThreshold string   `json:"severity_threshold,omitempty"`
	DisabledRules     []string `json:"disabled_rules,omitempty"`
	Waived            int      `json:"waived,omitempty"`
}

type FileStat struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
	Bytes int    `json:"bytes"`
}

// Finding is one reported violation. Line 0 means the finding is not tied to a line.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Match    string   `json:"match,omitempty"`
}

// FileFailure is the serialized form of a file that could not be checked.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Source is one file's text handed to the checker.
type Source struct {
	Path string
	Text string
}

// FileError reports a file that could not be read or checked. It never aborts
// checking of other files.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Failures converts file errors into their serialized form.
func Failures(errs []*FileError) []FileFailure {
	out := make([]FileFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, FileFailure{Path: e.Path, Error: e.Err.Error()})
	}
	return out
}
