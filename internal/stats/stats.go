package stats

import (
	"strings"

	"github.com/codewithboateng/confcheck/internal/ir"
)

// Measure counts a file's lines and bytes. A trailing newline does not
// open an extra line.
func Measure(src ir.Source) ir.FileStat {
	n := strings.Count(src.Text, "\n")
	if src.Text != "" && !strings.HasSuffix(src.Text, "\n") {
		n++
	}
	return ir.FileStat{Path: src.Path, Lines: n, Bytes: len(src.Text)}
}

func MeasureAll(srcs []ir.Source) []ir.FileStat {
	out := make([]ir.FileStat, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, Measure(s))
	}
	return out
}

type Totals struct {
	Files int
	Lines int
	Bytes int
}

func Sum(fs []ir.FileStat) Totals {
	t := Totals{Files: len(fs)}
	for _, f := range fs {
		t.Lines += f.Lines
		t.Bytes += f.Bytes
	}
	return t
}

// BySeverity counts findings per severity.
func BySeverity(fs []ir.Finding) map[ir.Severity]int {
	out := map[ir.Severity]int{}
	for _, f := range fs {
		out[f.Severity]++
	}
	return out
}
