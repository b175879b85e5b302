package reporting

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/stats"
)

func WriteHTML(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := RenderHTML(f, run); err != nil {
		return "", err
	}
	return path, nil
}

// RenderHTML writes a self-contained HTML page for the run.
func RenderHTML(w io.Writer, run *ir.Run) error {
	var b strings.Builder
	t := stats.Sum(run.Files)
	bySev := stats.BySeverity(run.Findings)

	// Head + styles
	fmt.Fprintf(&b, "<!doctype html><html lang='en'><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(run.ID))
	b.WriteString("<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace} .error{color:#b00020} .warning{color:#a36b00}</style>")
	b.WriteString("</head><body>")

	// Title + summary
	fmt.Fprintf(&b, "<h1>confcheck report – <span class='mono'>%s</span></h1>", html.EscapeString(run.ID))
	fmt.Fprintf(&b, "<p>Files: %d &nbsp; Lines: %d &nbsp; Bytes: %d &nbsp; Rules: %d</p>", t.Files, t.Lines, t.Bytes, run.Context.RuleCount)
	fmt.Fprintf(&b, "<p><b>Findings</b>: %d &nbsp; error=%d &nbsp; warning=%d &nbsp; info=%d</p>",
		len(run.Findings), bySev[ir.SeverityError], bySev[ir.SeverityWarning], bySev[ir.SeverityInfo])

	// Threshold/disabled/waived banner
	fmt.Fprintf(&b, "<p class='dim'>Severity threshold: %s", html.EscapeString(run.Context.SeverityThreshold))
	if n := len(run.Context.DisabledRules); n > 0 {
		fmt.Fprintf(&b, " &nbsp; Disabled rules: %d", n)
	}
	if run.Context.Waived > 0 {
		fmt.Fprintf(&b, " &nbsp; Waived findings: %d", run.Context.Waived)
	}
	b.WriteString("</p>")

	// Top rules by finding count
	if len(run.Findings) > 0 {
		counts := map[string]int{}
		for _, fd := range run.Findings {
			counts[fd.RuleID]++
		}
		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if counts[ids[i]] == counts[ids[j]] {
				return ids[i] < ids[j]
			}
			return counts[ids[i]] > counts[ids[j]]
		})
		if len(ids) > 20 {
			ids = ids[:20]
		}
		b.WriteString("<h2>Top Rules</h2><table><tr><th>Rule</th><th>Findings</th></tr>")
		for _, id := range ids {
			fmt.Fprintf(&b, "<tr><td class='mono'>%s</td><td>%d</td></tr>", html.EscapeString(id), counts[id])
		}
		b.WriteString("</table>")
	}

	// All findings
	if len(run.Findings) > 0 {
		b.WriteString("<h2>All Findings</h2><table><tr><th>Severity</th><th>Rule</th><th>Location</th><th>Message</th><th>Match</th></tr>")
		for _, fd := range run.Findings {
			loc := fd.Path
			if fd.Line > 0 {
				loc = fmt.Sprintf("%s:%d", fd.Path, fd.Line)
			}
			fmt.Fprintf(&b, "<tr><td class='%s'>%s</td><td class='mono'>%s</td><td class='mono'>%s</td><td>%s</td><td class='mono'>%s</td></tr>",
				html.EscapeString(string(fd.Severity)),
				html.EscapeString(string(fd.Severity)),
				html.EscapeString(fd.RuleID),
				html.EscapeString(loc),
				html.EscapeString(fd.Message),
				html.EscapeString(fd.Match),
			)
		}
		b.WriteString("</table>")
	} else {
		b.WriteString("<h2>All Findings</h2><p class='dim'>No findings at or above the configured threshold.</p>")
	}

	// Unreadable files
	if len(run.Errors) > 0 {
		b.WriteString("<h2>Files Not Checked</h2><table><tr><th>Path</th><th>Error</th></tr>")
		for _, e := range run.Errors {
			fmt.Fprintf(&b, "<tr><td class='mono'>%s</td><td>%s</td></tr>", html.EscapeString(e.Path), html.EscapeString(e.Error))
		}
		b.WriteString("</table>")
	}

	b.WriteString("</body></html>")
	_, err := io.WriteString(w, b.String())
	return err
}
