package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/codewithboateng/confcheck/internal/ir"
)

type palette struct {
	path, err, warn, info *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path: color.New(color.Bold),
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		info: color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.path, p.err, p.warn, p.info} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s ir.Severity) string {
	switch s {
	case ir.SeverityError:
		return p.err.Sprint(string(s))
	case ir.SeverityWarning:
		return p.warn.Sprint(string(s))
	}
	return p.info.Sprint(string(s))
}

// FormatFinding renders `path:line: severity: message`, dropping the line
// part for whole-file findings.
func FormatFinding(f ir.Finding) string {
	return newPalette(false).finding(f)
}

func (p palette) finding(f ir.Finding) string {
	loc := f.Path
	if f.Line > 0 {
		loc += ":" + strconv.Itoa(f.Line)
	}
	return p.path.Sprint(loc) + ": " + p.severity(f.Severity) + ": " + f.Message
}

// WriteText writes one line per finding.
func WriteText(w io.Writer, findings []ir.Finding, useColor bool) error {
	p := newPalette(useColor)
	for _, f := range findings {
		if _, err := fmt.Fprintln(w, p.finding(f)); err != nil {
			return err
		}
	}
	return nil
}

// WriteFileErrors writes `path: error: reason` for each unreadable file.
func WriteFileErrors(w io.Writer, errs []*ir.FileError, useColor bool) error {
	p := newPalette(useColor)
	for _, e := range errs {
		if _, err := fmt.Fprintf(w, "%s: %s: %v\n", p.path.Sprint(e.Path), p.err.Sprint("error"), e.Err); err != nil {
			return err
		}
	}
	return nil
}
