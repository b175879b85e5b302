package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/confcheck/internal/ir"
)

func TestFormatFinding(t *testing.T) {
	assert.Equal(t, "a.js:3: warning: use let/const",
		FormatFinding(ir.Finding{Path: "a.js", Line: 3, Severity: ir.SeverityWarning, Message: "use let/const"}))
	assert.Equal(t, "a.h: warning: header lacks #pragma once",
		FormatFinding(ir.Finding{Path: "a.h", Severity: ir.SeverityWarning, Message: "header lacks #pragma once"}))
}

func TestWriteText_NoColorIsPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []ir.Finding{
		{Path: "a.js", Line: 1, Severity: ir.SeverityError, Message: "avoid eval"},
		{Path: "b.css", Line: 9, Severity: ir.SeverityInfo, Message: "avoid !important"},
	}, false))
	assert.Equal(t, "a.js:1: error: avoid eval\nb.css:9: info: avoid !important\n", buf.String())
}

func TestWriteText_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []ir.Finding{{Path: "a.js", Line: 1, Severity: ir.SeverityError, Message: "m"}}, true))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "m\n")
}

func TestWriteFileErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFileErrors(&buf, []*ir.FileError{{Path: "x.bin", Err: errors.New("permission denied")}}, false))
	assert.Equal(t, "x.bin: error: permission denied\n", buf.String())
}

func TestRenderHTML_Escapes(t *testing.T) {
	run := &ir.Run{
		ID:      "run-1",
		Files:   []ir.FileStat{{Path: "i.html", Lines: 2, Bytes: 40}},
		Context: ir.Context{RuleCount: 3, SeverityThreshold: "info", Waived: 2},
		Findings: []ir.Finding{{
			RuleID: "no-innerhtml-variable", Path: "i.html", Line: 2, Severity: ir.SeverityError,
			Message: "innerHTML assigned from <script>", Match: `.innerHTML = x"<b>`,
		}},
		Errors: []ir.FileFailure{{Path: "<odd>.js", Error: "too large"}},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, run))
	out := buf.String()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "innerHTML assigned from &lt;script&gt;")
	assert.Contains(t, out, "&lt;odd&gt;.js")
	assert.Contains(t, out, "i.html:2")
	assert.Contains(t, out, "Waived findings: 2")
	assert.Contains(t, out, "error=1")
	assert.True(t, strings.HasSuffix(out, "</body></html>"))
}

func TestRenderHTML_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, &ir.Run{ID: "run-2"}))
	assert.Contains(t, buf.String(), "No findings")
	assert.NotContains(t, buf.String(), "Top Rules")
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	run := &ir.Run{ID: "run-3", IRVersion: ir.Version, Findings: []ir.Finding{{RuleID: "r", Path: "p", Severity: ir.SeverityInfo, Message: "m"}}}
	p, err := WriteJSON(run.ID, dir, run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-3.json"), p)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var got ir.Run
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, run.Findings, got.Findings)
}

func TestDiff(t *testing.T) {
	base := &ir.Run{Findings: []ir.Finding{
		{RuleID: "no-var", Path: "a.js", Line: 3, Severity: ir.SeverityWarning, Message: "use let/const", Match: "var x"},
		{RuleID: "no-var", Path: "a.js", Line: 9, Severity: ir.SeverityWarning, Message: "use let/const", Match: "var y"},
		{RuleID: "no-eval", Path: "b.js", Line: 1, Severity: ir.SeverityWarning, Message: "avoid eval", Match: "eval("},
	}}
	head := &ir.Run{Findings: []ir.Finding{
		// moved down two lines; same identity
		{RuleID: "no-var", Path: "a.js", Line: 5, Severity: ir.SeverityWarning, Message: "use let/const", Match: "var x"},
		{RuleID: "no-eval", Path: "b.js", Line: 1, Severity: ir.SeverityError, Message: "avoid eval", Match: "eval("},
		{RuleID: "css-important", Path: "c.css", Line: 4, Severity: ir.SeverityInfo, Message: "avoid !important", Match: "!important"},
	}}

	d := Diff("run-a", "run-b", base, head)
	assert.Equal(t, DiffSummary{NewCount: 1, RemovedCount: 1, ChangedCount: 1}, d.Summary)

	want := []DiffFinding{{RuleID: "css-important", Path: "c.css", Line: 4, Severity: ir.SeverityInfo, Message: "avoid !important"}}
	if diff := cmp.Diff(want, d.New); diff != "" {
		t.Fatalf("new findings (-want +got):\n%s", diff)
	}
	assert.Equal(t, 9, d.Removed[0].Line)
	assert.Equal(t, []string{"severity"}, d.Changed[0].Changed)
	assert.Equal(t, "no-eval|b.js|eval(", d.Changed[0].Key)
}

func TestDiff_RepeatedKeys(t *testing.T) {
	f := ir.Finding{RuleID: "css-important", Path: "s.css", Severity: ir.SeverityInfo, Match: "!important"}
	base := &ir.Run{Findings: []ir.Finding{f, f}}
	head := &ir.Run{Findings: []ir.Finding{f, f, f}}

	d := Diff("a", "b", base, head)
	assert.Equal(t, 1, d.Summary.NewCount)
	assert.Zero(t, d.Summary.RemovedCount)

	d = Diff("b", "a", head, base)
	assert.Zero(t, d.Summary.NewCount)
	assert.Equal(t, 1, d.Summary.RemovedCount)
}

func TestWriteDiffJSON(t *testing.T) {
	dir := t.TempDir()
	p, err := WriteDiffJSON("a", "b", dir, &ir.Run{}, &ir.Run{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "diff_a__b.json"), p)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var got DiffPayload
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "a", got.BaseID)
	assert.Empty(t, got.New)
}
