package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/confcheck/internal/storage"
)

const testPack = `
rules:
  - id: no-var
    files: ["*.js"]
    literal: "var "
    severity: warning
    message: use let/const
  - id: no-eval
    files: ["*.js"]
    regex: '\beval\s*\('
    severity: error
    message: avoid eval
`

type result struct {
	code           int
	stdout, stderr string
}

func invoke(t *testing.T, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb)
	return result{code: code, stdout: out.String(), stderr: errb.String()}
}

// workspace switches into a temp dir holding the rule pack and the given files.
func workspace(t *testing.T, files map[string]string) {
	t.Helper()
	t.Chdir(t.TempDir())
	files["rules.yaml"] = testPack
	for name, body := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(body), 0o644))
	}
}

func check(t *testing.T, extra ...string) result {
	t.Helper()
	args := append([]string{"check", "--no-default-rules", "--rules", "rules.yaml", "--no-color"}, extra...)
	return invoke(t, args...)
}

func TestCheck_CleanExitsZero(t *testing.T) {
	workspace(t, map[string]string{"src/a.js": "let x = 1;\n"})
	r := check(t, "src")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "1 files, 0 findings")
}

func TestCheck_WarningExitsZero(t *testing.T) {
	workspace(t, map[string]string{"a.js": "// header\n\nvar x = 1;\n"})
	r := check(t, "a.js")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "a.js:3: warning: use let/const\n", r.stdout)
}

func TestCheck_ErrorExitsOne(t *testing.T) {
	workspace(t, map[string]string{"a.js": "eval(x);\nvar y;\n"})
	r := check(t, ".")
	assert.Equal(t, exitFindings, r.code)
	assert.Equal(t, "a.js:1: error: avoid eval\na.js:2: warning: use let/const\n", r.stdout)
}

func TestCheck_SeverityAndDisable(t *testing.T) {
	workspace(t, map[string]string{"a.js": "eval(x);\nvar y;\n"})

	r := check(t, "--severity", "error", "a.js")
	assert.Equal(t, "a.js:1: error: avoid eval\n", r.stdout)

	r = check(t, "--disable", "no-eval", "a.js")
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "a.js:2: warning: use let/const\n", r.stdout)
}

func TestCheck_RulesFlagReplacesBuiltins(t *testing.T) {
	workspace(t, map[string]string{"a.js": "// header\n\nvar x = 1;"})

	r := invoke(t, "check", "a.js", "--rules", "rules.yaml", "--no-color")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "a.js:3: warning: use let/const\n", r.stdout)

	// without a pack the built-in rules apply, including final-newline
	r = invoke(t, "check", "a.js", "--no-color")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "a.js: info: file does not end with a newline\n")
}

func TestCheck_UnreadableFileExitsOne(t *testing.T) {
	workspace(t, map[string]string{"a.js": "let a;\n"})
	r := check(t, "a.js", "missing.js")
	assert.Equal(t, exitFindings, r.code)
	assert.Contains(t, r.stderr, "missing.js: error:")
}

func TestCheck_UsageErrors(t *testing.T) {
	workspace(t, map[string]string{
		"a.js":     "var a;\n",
		"bad.yaml": "rules:\n  - {id: r, files: '*', regex: '(', severity: info, message: m}\n",
	})
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no paths", []string{"check"}, "requires at least 1 arg"},
		{"unknown flag", []string{"check", "--nope", "a.js"}, "unknown flag"},
		{"unknown command", []string{"lint"}, "unknown command"},
		{"bad severity", []string{"check", "--severity", "fatal", "a.js"}, `severity "fatal"`},
		{"bad format", []string{"check", "--format", "xml", "a.js"}, `format "xml"`},
		{"bad rule pack", []string{"check", "--no-default-rules", "--rules", "bad.yaml", "a.js"}, `bad.yaml: rule "r"`},
		{"duplicate rule", []string{"check", "--with-default-rules", "--rules", "rules.yaml", "a.js"}, `rule "no-var": duplicate rule id`},
		{"conflicting defaults", []string{"check", "--no-default-rules", "--with-default-rules", "a.js"}, "conflict"},
		{"missing config", []string{"--config", "nope.yaml", "check", "a.js"}, "read config"},
		{"history without db", []string{"runs"}, "--db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := invoke(t, tt.args...)
			assert.Equal(t, exitUsage, r.code, r.stderr)
			assert.Contains(t, r.stderr, tt.want)
			assert.Empty(t, r.stdout)
		})
	}
}

func TestCheck_ConfigFile(t *testing.T) {
	workspace(t, map[string]string{
		"a.js": "eval(x);\nvar y;\n",
		".confcheck.yaml": `
rules:
  packs: [rules.yaml]
  no_defaults: true
  disabled: [no-var]
reporting:
  color: never
`,
	})
	r := invoke(t, "check", "a.js")
	assert.Equal(t, exitFindings, r.code)
	assert.Equal(t, "a.js:1: error: avoid eval\n", r.stdout)
}

func TestRules_ConfigWithDefaults(t *testing.T) {
	workspace(t, map[string]string{
		"a.js":     "let a;\n",
		"own.yaml": "rules:\n  - {id: no-tabs, files: '*.js', literal: \"\\t\", severity: error, message: tab}\n",
		".confcheck.yaml": `
rules:
  packs: [own.yaml]
  with_defaults: true
`,
	})
	r := invoke(t, "rules")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "no-tabs")
	assert.Contains(t, r.stdout, "cpp-header-guard")
}

func TestCheck_JSONToStdout(t *testing.T) {
	workspace(t, map[string]string{"a.js": "var y;\n"})
	r := check(t, "--format", "json", "a.js")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, `"rule_id": "no-var"`)
	assert.Contains(t, r.stdout, `"ir_version": "1.0"`)
}

func TestRulesCommand(t *testing.T) {
	workspace(t, map[string]string{})
	r := invoke(t, "rules")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "no-var")
	assert.Contains(t, r.stdout, "cpp-header-guard")

	for _, args := range [][]string{
		{"rules", "--rules", "rules.yaml"},
		{"rules", "--no-default-rules", "--rules", "rules.yaml"},
	} {
		r = invoke(t, args...)
		assert.Equal(t, exitOK, r.code, r.stderr)
		lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, r.stderr, "2 rules")
	}
}

func TestHistoryWaiversAndDiff(t *testing.T) {
	workspace(t, map[string]string{"a.js": "eval(x);\nvar y;\n"})

	r := check(t, "--db", "runs.db", "a.js")
	require.Equal(t, exitFindings, r.code, r.stderr)

	r = invoke(t, "--db", "runs.db", "waiver", "add", "--rule", "no-eval", "--path", "*.js", "--reason", "legacy", "--by", "ci")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "waiver 1 created\n", r.stdout)

	r = check(t, "--db", "runs.db", "a.js")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "a.js:2: warning: use let/const\n", r.stdout)

	r = invoke(t, "--db", "runs.db", "waiver", "list")
	assert.Contains(t, r.stdout, "legacy")

	db, err := storage.OpenSQLite("runs.db")
	require.NoError(t, err)
	rows, err := db.ListRuns(10, 0)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, rows, 2)
	head, base := rows[0], rows[1]
	assert.Equal(t, 1, head.Findings)
	assert.Equal(t, 2, base.Findings)

	r = invoke(t, "--db", "runs.db", "runs")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, head.ID)

	r = invoke(t, "--db", "runs.db", "report", "--format", "text", "--no-color")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "a.js:2: warning: use let/const\n", r.stdout)

	r = invoke(t, "--db", "runs.db", "report", "--run", base.ID, "--format", "html", "--out", "out")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.FileExists(t, filepath.Join("out", base.ID+".html"))

	r = invoke(t, "--db", "runs.db", "diff", "--base", base.ID, "--head", head.ID, "--out", "out")
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "new=0 removed=1 changed=0")

	r = invoke(t, "--db", "runs.db", "waiver", "revoke", "1")
	assert.Equal(t, exitOK, r.code)
	r = invoke(t, "--db", "runs.db", "waiver", "revoke", "1")
	assert.Equal(t, exitFindings, r.code)
	assert.Contains(t, r.stderr, "waiver not found")

	r = invoke(t, "--db", "runs.db", "report", "--run", "run-missing")
	assert.Equal(t, exitFindings, r.code)
	assert.Contains(t, r.stderr, "run not found")
}

func TestVersion(t *testing.T) {
	workspace(t, map[string]string{})
	r := invoke(t, "version")
	assert.Equal(t, exitOK, r.code)
	assert.True(t, strings.HasPrefix(r.stdout, "confcheck dev"))
}
